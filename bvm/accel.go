package bvm

import "bunnyvm.org/bunny/isa"

// accelerate executes the loop starting at the program counter in one go, if it is a known idiom.
// It returns the number of plain steps the loop would have taken, or 0 if nothing was done.
// Idioms are matched against the program as it is now, so toggled code is never accelerated by mistake.
// An idiom is only used if it fits in budget.
func (vm *Machine) accelerate(budget uint64) uint64 {
	pc := int(vm.pc)
	if m, ok := vm.matchMul(pc); ok {
		return vm.applyMul(pc, m, budget)
	}
	if a, ok := vm.matchAdd(pc); ok {
		return vm.applyAdd(pc, a, budget)
	}
	return 0
}

// addLoop is
//
//	inc x    (or dec x)
//	dec y
//	jnz y -2
//
// the first two instructions may appear in either order.
type addLoop struct {
	x, y isa.Register
	sign Int
}

func (vm *Machine) matchAdd(pc int) (addLoop, bool) {
	if pc+3 > len(vm.prog) {
		return addLoop{}, false
	}
	jnz, ok := vm.prog[pc+2].(isa.JnzI)
	if !ok || jnz.Offset != isa.Imm(-2) {
		return addLoop{}, false
	}
	y, ok := jnz.Test.Register()
	if !ok {
		return addLoop{}, false
	}
	for _, order := range [2][2]int{{0, 1}, {1, 0}} {
		dec, ok := vm.prog[pc+order[1]].(isa.DecI)
		if !ok || dec.X != isa.Reg(y) {
			continue
		}
		x, sign, ok := stepOf(vm.prog[pc+order[0]])
		if !ok || x == y {
			continue
		}
		return addLoop{x: x, y: y, sign: sign}, true
	}
	return addLoop{}, false
}

func (vm *Machine) applyAdd(pc int, a addLoop, budget uint64) uint64 {
	n := vm.regs[a.y]
	if n <= 0 {
		return 0
	}
	steps := 3 * uint64(n)
	if steps > budget {
		return 0
	}
	vm.history.PushBack(Event{Step: vm.steps, PC: vm.pc, I: vm.prog[pc], Accelerated: true})
	vm.regs[a.x] += a.sign * n
	vm.regs[a.y] = 0
	vm.pc += 3
	vm.steps += steps
	vm.updateStatus()
	return steps
}

// mulLoop is
//
//	cpy s y
//	<addLoop x += y>
//	dec z
//	jnz z -5
type mulLoop struct {
	add addLoop
	s   isa.Operand
	z   isa.Register
}

func (vm *Machine) matchMul(pc int) (mulLoop, bool) {
	if pc+6 > len(vm.prog) {
		return mulLoop{}, false
	}
	cpy, ok := vm.prog[pc].(isa.CpyI)
	if !ok {
		return mulLoop{}, false
	}
	add, ok := vm.matchAdd(pc + 1)
	if !ok || cpy.Dst != isa.Reg(add.y) {
		return mulLoop{}, false
	}
	dec, ok := vm.prog[pc+4].(isa.DecI)
	if !ok {
		return mulLoop{}, false
	}
	z, ok := dec.X.Register()
	if !ok || z == add.x || z == add.y {
		return mulLoop{}, false
	}
	jnz, ok := vm.prog[pc+5].(isa.JnzI)
	if !ok || jnz.Test != isa.Reg(z) || jnz.Offset != isa.Imm(-5) {
		return mulLoop{}, false
	}
	if s, ok := cpy.Src.Register(); ok && (s == add.x || s == add.y || s == z) {
		return mulLoop{}, false
	}
	return mulLoop{add: add, s: cpy.Src, z: z}, true
}

func (vm *Machine) applyMul(pc int, m mulLoop, budget uint64) uint64 {
	s, z := vm.Resolve(m.s), vm.regs[m.z]
	if s <= 0 || z <= 0 {
		return 0
	}
	steps := uint64(z) * (3*uint64(s) + 3)
	if steps > budget {
		return 0
	}
	vm.history.PushBack(Event{Step: vm.steps, PC: vm.pc, I: vm.prog[pc], Accelerated: true})
	vm.regs[m.add.x] += m.add.sign * s * z
	vm.regs[m.add.y] = 0
	vm.regs[m.z] = 0
	vm.pc += 6
	vm.steps += steps
	vm.updateStatus()
	return steps
}

// stepOf returns the register changed by an inc or dec, and the direction.
func stepOf(ix I) (isa.Register, Int, bool) {
	switch ix := ix.(type) {
	case isa.IncI:
		r, ok := ix.X.Register()
		return r, 1, ok
	case isa.DecI:
		r, ok := ix.X.Register()
		return r, -1, ok
	}
	return 0, 0, false
}
