// Package golang_asm exposes the Go toolchain's 386 backend, vendored by
// twitchyliquid64/golang-asm, as an independent reference encoder. Tests
// use it to cross-check instructions that have a single canonical
// encoding.
package golang_asm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// EncodeStandalone assembles one operand-less instruction and returns its
// bytes.
func EncodeStandalone(as obj.As) ([]byte, error) {
	return encode(func(p *obj.Prog) { p.As = as })
}

// EncodeRegisterToRegister assembles one two-register instruction. The
// operand order follows the Go assembler convention: from is the source,
// to the destination.
func EncodeRegisterToRegister(as obj.As, from, to int16) ([]byte, error) {
	return encode(func(p *obj.Prog) {
		p.As = as
		p.From.Type = obj.TYPE_REG
		p.From.Reg = from
		p.To.Type = obj.TYPE_REG
		p.To.Reg = to
	})
}

func encode(fill func(*obj.Prog)) ([]byte, error) {
	b, err := goasm.NewBuilder("386", 16)
	if err != nil {
		return nil, fmt.Errorf("creating assembly builder: %w", err)
	}
	p := b.NewProg()
	fill(p)
	b.AddInstruction(p)
	code := b.Assemble()
	if len(code) == 0 {
		return nil, fmt.Errorf("no bytes produced for %s", p)
	}
	return code, nil
}
