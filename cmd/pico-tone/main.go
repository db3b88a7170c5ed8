//go:build rp2040

// pico-tone plays a sine tone on a PIO I2S DAC and logs a heartbeat from a
// timer alarm over UART0.
package main

import (
	"context"
	"log/slog"
	"machine"
	"math"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"devicecode-periph/board"
	_ "devicecode-periph/hal/rp2"
	"devicecode-periph/sai"
	"devicecode-periph/services/alarms"
	"devicecode-periph/timer"
	"devicecode-periph/x/logx"
)

// Wiring for a PCM5102-style DAC on the Pico.
const (
	pinBCK  = 26 // WS must be BCK+1
	pinWS   = 27
	pinData = 22

	sampleRate = 22050
	toneHz     = 440
	heartbeat  = 500_000 // counts at the default 1 MHz
)

func main() {
	time.Sleep(1500 * time.Millisecond)
	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	logx.SetLogger(logx.NewLogger(uartx.UART0))
	logx.SetLogLevel(slog.LevelInfo)

	p, err := board.Take()
	if err != nil {
		println("[tone] take:", err.Error())
		return
	}
	tx, err := sai.NewTx[sai.Philips[sai.I2S0], int16](p.I2S0,
		sai.TxPins{BCK: pinBCK, WS: pinWS, DataOut: pinData}, sampleRate)
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

	ctx := context.Background()
	w := alarms.New(4, 4)
	w.Start(ctx)
	if _, err := w.Watch("heartbeat", tm, heartbeat); err != nil {
		logx.LogError(logx.ComponentAlarms, "watch", "err", err)
		return
	}
	_ = tm.Enable(true)
	go func() {
		for ev := range w.Events() {
			logx.LogInfo(logx.ComponentAlarms, "heartbeat", "seq", ev.Seq, "drops", w.ISRDrops())
		}
	}()

	// One period of the tone, stereo interleaved.
	period := sampleRate / toneHz
	buf := make([]int16, 2*period)
	for i := 0; i < period; i++ {
		v := int16(math.Sin(2*math.Pi*float64(i)/float64(period)) * 12000)
		buf[2*i], buf[2*i+1] = v, v
	}
	for {
		if _, err := tx.Write(buf); err != nil {
			logx.LogWarn(logx.ComponentSAI, "write", "err", err)
		}
	}
}
