//go:build !rp2040

// sim-demo drives a tone through the simulated audio engine while a
// simulated timer alarm reports through the alarm worker.
package main

import (
	"context"
	"log/slog"
	"math"
	"os"
	"time"

	"devicecode-periph/board"
	"devicecode-periph/hal/sim"
	"devicecode-periph/sai"
	"devicecode-periph/services/alarms"
	"devicecode-periph/timer"
	"devicecode-periph/x/logx"
)

const (
	sampleRate = 8000
	toneHz     = 440
	alarmEvery = 250 // counts
)

func main() {
	logx.SetLogger(logx.NewLogger(os.Stdout))
	logx.SetLogLevel(slog.LevelDebug)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	saiSim, timerSim := sim.Install()
	p, err := board.Take()
	if err != nil {
		logx.LogError(logx.ComponentHAL, "take", "err", err)
		return
	}

	tx, err := sai.NewTx[sai.Philips[sai.I2S0], int16](p.I2S0,
		sai.TxPins{BCK: 26, WS: 27, DataOut: 25}, sampleRate)
	if err != nil {
		logx.LogError(logx.ComponentSAI, "open", "err", err)
		return
	}
	defer tx.Close()

	tm, err := timer.New(p.Timer00, timer.NewConfig())
	if err != nil {
		logx.LogError(logx.ComponentTimer, "open", "err", err)
		return
	}
	defer tm.Close()

	w := alarms.New(0, 0)
	w.Start(ctx)
	stop, err := w.Watch("timer0.0", tm, alarmEvery)
	if err != nil {
		logx.LogError(logx.ComponentAlarms, "watch", "err", err)
		return
	}
	defer stop()
	_ = tm.Enable(true)

	// Bit clock and timer source.
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				saiSim.Clock(0, 10*time.Millisecond)
				timerSim.Tick(tm.ID(), 100)
			}
		}
	}()

	go func() {
		for ev := range w.Events() {
			logx.LogInfo(logx.ComponentAlarms, "alarm", "timer", ev.Timer, "count", ev.Count, "seq", ev.Seq)
		}
	}()

	frame := make([]int16, 2*sampleRate/100)
	phase := 0.0
	written := 0
	for ctx.Err() == nil {
		for i := 0; i < len(frame); i += 2 {
			v := int16(math.Sin(phase) * 8000)
			frame[i], frame[i+1] = v, v
			phase += 2 * math.Pi * toneHz / sampleRate
		}
		n, err := tx.Write(frame)
		written += n
		if err != nil {
			logx.LogWarn(logx.ComponentSAI, "write", "err", err, "n", n)
		}
	}
	logx.LogInfo(logx.ComponentSAI, "done", "samples", written, "isr_drops", w.ISRDrops())
}
