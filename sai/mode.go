package sai

import "devicecode-periph/hal"

// Role selects which side drives BCK and WS.
type Role uint8

const (
	RoleMaster Role = iota
	RoleSlave
)

func (r Role) bits() hal.Mode {
	if r == RoleSlave {
		return hal.ModeSlave
	}
	return hal.ModeMaster
}

func (r Role) String() string {
	if r == RoleSlave {
		return "slave"
	}
	return "master"
}

// Mode is a mode tag usable with identity P: it fixes the role and resolves
// the communication format P declares for it.
type Mode[P Port] interface {
	Role() Role
	Format(P) hal.CommFormat
}

// Philips is the standard two-line I2S format, master role.
type Philips[P PhilipsPort] struct{}

func (Philips[P]) Role() Role                { return RoleMaster }
func (Philips[P]) Format(p P) hal.CommFormat { return p.PhilipsFormat() }

// LeftJustified is the MSB-aligned format, master role.
type LeftJustified[P LeftJustifiedPort] struct{}

func (LeftJustified[P]) Role() Role                { return RoleMaster }
func (LeftJustified[P]) Format(p P) hal.CommFormat { return p.LeftJustifiedFormat() }

// TDM is the time-division-multiplexed (DSP) format, master role.
type TDM[P TDMPort] struct{}

func (TDM[P]) Role() Role                { return RoleMaster }
func (TDM[P]) Format(p P) hal.CommFormat { return p.TDMFormat() }

// Slave runs mode M with the clocks driven by the other side.
type Slave[P Port, M Mode[P]] struct{}

func (Slave[P, M]) Role() Role { return RoleSlave }

func (Slave[P, M]) Format(p P) hal.CommFormat {
	var m M
	return m.Format(p)
}
