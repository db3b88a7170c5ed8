package sai

import "devicecode-periph/hal"

// Port is implemented by the identity token of a serial audio engine.
type Port interface {
	comparable
	Num() hal.Port
}

// Capability declarations. An identity supports a mode tag exactly when it
// has the matching format method; instantiating a tag for an identity that
// lacks it does not compile.
type (
	PhilipsPort interface {
		Port
		PhilipsFormat() hal.CommFormat
	}
	LeftJustifiedPort interface {
		Port
		LeftJustifiedFormat() hal.CommFormat
	}
	TDMPort interface {
		Port
		TDMFormat() hal.CommFormat
	}
)

// I2S0 is serial audio engine 0.
type I2S0 struct{}

func (I2S0) Num() hal.Port                       { return 0 }
func (I2S0) PhilipsFormat() hal.CommFormat       { return hal.CommI2S }
func (I2S0) LeftJustifiedFormat() hal.CommFormat { return hal.CommMSB }
func (I2S0) TDMFormat() hal.CommFormat           { return hal.CommPCMShort }

// I2S1 is serial audio engine 1.
type I2S1 struct{}

func (I2S1) Num() hal.Port                       { return 1 }
func (I2S1) PhilipsFormat() hal.CommFormat       { return hal.CommI2S }
func (I2S1) LeftJustifiedFormat() hal.CommFormat { return hal.CommMSB }
func (I2S1) TDMFormat() hal.CommFormat           { return hal.CommPCMShort }
