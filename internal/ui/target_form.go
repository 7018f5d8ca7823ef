package ui

import (
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// TargetPrompt holds the values edited by the target forms.
type TargetPrompt struct {
	IP             string
	LogicalAddress string
}

// Target parses the prompt into an ECU target.
func (p TargetPrompt) Target() (vehicleinfo.Target, error) {
	if err := validateIP(p.IP); err != nil {
		return vehicleinfo.Target{}, err
	}
	la, err := vehicleinfo.ParseLogicalAddress(p.LogicalAddress)
	if err != nil {
		return vehicleinfo.Target{}, err
	}
	return vehicleinfo.Target{Address: strings.TrimSpace(p.IP), LogicalAddress: la}, nil
}

// LogicalAddressLookup returns a remembered logical address for an IP.
type LogicalAddressLookup func(ip string) (uint16, bool)

// PromptTarget asks for the ECU address, then for its logical address.
// When lookup knows the address, the second form starts from the
// remembered logical address instead of the default.
func PromptTarget(defaults TargetPrompt, lookup LogicalAddressLookup) (vehicleinfo.Target, error) {
	p := defaults
	if err := buildAddressForm(&p).Run(); err != nil {
		return vehicleinfo.Target{}, err
	}
	prefillLogicalAddress(&p, lookup)
	if err := buildLogicalAddressForm(&p).Run(); err != nil {
		return vehicleinfo.Target{}, err
	}
	return p.Target()
}

func prefillLogicalAddress(p *TargetPrompt, lookup LogicalAddressLookup) {
	if lookup == nil {
		return
	}
	if la, ok := lookup(strings.TrimSpace(p.IP)); ok {
		p.LogicalAddress = fmt.Sprintf("0x%04X", la)
	}
}

func buildAddressForm(p *TargetPrompt) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("ECU IP address").
			Description("DoIP entity to query, e.g. 192.168.0.10.").
			Key("ip").
			Value(&p.IP).
			Validate(validateIP),
	))
}

func buildLogicalAddressForm(p *TargetPrompt) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("ECU logical address (hex)").
			Description("Diagnostic address of the ECU, e.g. 0x545.").
			Key("la").
			Value(&p.LogicalAddress).
			Validate(validateLogicalAddress),
	))
}

func validateIP(s string) error {
	if net.ParseIP(strings.TrimSpace(s)) == nil {
		return fmt.Errorf("%q is not an IP address", s)
	}
	return nil
}

func validateLogicalAddress(s string) error {
	_, err := vehicleinfo.ParseLogicalAddress(s)
	return err
}
