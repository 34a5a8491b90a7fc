package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/librift/librift/internal/conv"
	"github.com/librift/librift/rifterr"
	"github.com/librift/librift/syntax"
)

// Wire format: "RIFT", a version byte, the flag bitset, the group
// count, a length-prefixed pool of tagged entries (class bitmaps, group
// names, sub-programs), and the instruction array. All integers are
// little-endian; instruction operands travel as 24-bit two's-complement
// fields.
const (
	wireMagic   = "RIFT"
	wireVersion = 1
)

// Pool entry tags.
const (
	poolClass byte = 1
	poolName  byte = 2
	poolSub   byte = 3
)

const (
	maxWireGroups = 0xFFFF
	maxWireLoops  = 1 << 16
	// maxSubDepth equals the parser's group nesting cap, so every
	// compiled program deserializes; only handcrafted input can exceed it.
	maxSubDepth   = 64
	wireHeaderLen = 4 + 1 + 4 + 4 + 4
)

// Serialize encodes a compiled program, including nested sub-programs,
// into its portable binary form. The result round-trips through
// Deserialize to a program with identical matching behavior.
func Serialize(p *Program) []byte {
	var pool bytes.Buffer
	for _, cls := range p.Classes {
		pool.WriteByte(poolClass)
		pool.Write(cls[:])
	}
	if len(p.Names) > 1 {
		var l [2]byte
		for _, name := range p.Names[1:] {
			pool.WriteByte(poolName)
			binary.LittleEndian.PutUint16(l[:], conv.IntToUint16(len(name)))
			pool.Write(l[:])
			pool.WriteString(name)
		}
	}
	for _, sub := range p.Subs {
		enc := Serialize(sub)
		pool.WriteByte(poolSub)
		writeU32(&pool, conv.IntToUint32(len(enc)))
		pool.Write(enc)
	}

	var buf bytes.Buffer
	buf.Grow(wireHeaderLen + pool.Len() + 4 + 8*len(p.Insts))
	buf.WriteString(wireMagic)
	buf.WriteByte(wireVersion)
	writeU32(&buf, uint32(p.Flags))
	writeU32(&buf, conv.IntToUint32(p.NumGroups))
	writeU32(&buf, conv.IntToUint32(pool.Len()))
	buf.Write(pool.Bytes())
	writeU32(&buf, conv.IntToUint32(len(p.Insts)))

	var rec [8]byte
	for _, in := range p.Insts {
		rec[0] = byte(in.Op)
		rec[1] = 0
		putUint24(rec[2:5], conv.PackInt24(in.X))
		putUint24(rec[5:8], conv.PackInt24(in.Y))
		buf.Write(rec[:])
	}
	return buf.Bytes()
}

// Deserialize decodes a serialized program, validating structure,
// opcode legality, jump bounds, and pool references. Structurally bad
// input yields InvalidArgument.
func Deserialize(data []byte) (*Program, error) {
	p, err := deserialize(data, 0)
	if err != nil {
		return nil, err
	}
	setLoopCount(p, collectLoopCount(p))
	return p, nil
}

func deserialize(data []byte, depth int) (*Program, error) {
	if depth > maxSubDepth {
		return nil, rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos,
			"sub-program nesting too deep")
	}

	r := &wireReader{data: data}
	if string(r.take(4)) != wireMagic {
		return nil, rifterr.New(rifterr.KindInvalidArgument, 0, "bad magic")
	}
	if v := r.u8(); r.err == nil && v != wireVersion {
		return nil, rifterr.Newf(rifterr.KindInvalidArgument, 4, "unsupported version %d", v)
	}

	flags := syntax.Flags(r.u32())
	groupsRaw := r.u32()
	poolLen := int(r.u32())
	if r.err == nil && groupsRaw > maxWireGroups {
		return nil, rifterr.Newf(rifterr.KindInvalidArgument, 9, "group count %d too large", groupsRaw)
	}
	groups := int(groupsRaw)
	poolData := r.take(poolLen)

	ni := int(r.u32())
	if r.err == nil && ni > maxInsts {
		return nil, rifterr.Newf(rifterr.KindInvalidArgument, r.off-4,
			"instruction count %d too large", ni)
	}
	if r.err == nil && r.remaining() != ni*8 {
		return nil, rifterr.New(rifterr.KindInvalidArgument, r.off,
			"instruction block length mismatch")
	}
	if r.err != nil {
		return nil, r.err
	}

	p := &Program{NumGroups: groups, Flags: flags}
	if err := flags.Compatible(); err != nil {
		return nil, err
	}
	if err := p.readPool(poolData, depth); err != nil {
		return nil, err
	}

	p.Insts = make([]Inst, ni)
	for i := range p.Insts {
		rec := r.take(8)
		if r.err != nil {
			return nil, r.err
		}
		if rec[1] != 0 {
			return nil, rifterr.New(rifterr.KindInvalidArgument, r.off-7, "nonzero pad byte")
		}
		p.Insts[i] = Inst{
			Op: Opcode(rec[0]),
			X:  conv.UnpackInt24(getUint24(rec[2:5])),
			Y:  conv.UnpackInt24(getUint24(rec[5:8])),
		}
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	p.recomputeWidths()
	return p, nil
}

// readPool parses the tagged pool entries into the program's class
// table, name table, and sub-program list.
func (p *Program) readPool(data []byte, depth int) error {
	r := &wireReader{data: data}
	var names []string
	for r.err == nil && r.remaining() > 0 {
		switch tag := r.u8(); tag {
		case poolClass:
			raw := r.take(32)
			if r.err == nil {
				var cls syntax.ClassSet
				copy(cls[:], raw)
				p.Classes = append(p.Classes, cls)
			}
		case poolName:
			n := int(r.u16())
			raw := r.take(n)
			if r.err == nil {
				names = append(names, string(raw))
			}
		case poolSub:
			n := int(r.u32())
			raw := r.take(n)
			if r.err != nil {
				break
			}
			sub, err := deserialize(raw, depth+1)
			if err != nil {
				return err
			}
			if sub.NumGroups != p.NumGroups {
				return rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos,
					"sub-program group count mismatch")
			}
			p.Subs = append(p.Subs, sub)
		default:
			return rifterr.Newf(rifterr.KindInvalidArgument, r.off-1,
				"unknown pool tag %d", tag)
		}
	}
	if r.err != nil {
		return r.err
	}
	if len(names) > 0 {
		if len(names) != p.NumGroups {
			return rifterr.Newf(rifterr.KindInvalidArgument, rifterr.NoPos,
				"name table holds %d entries for %d groups", len(names), p.NumGroups)
		}
		p.Names = append([]string{""}, names...)
	}
	return nil
}

// validate checks every instruction's operands against the program
// structure: opcode legality, jump bounds, pool and sub references,
// and save indices versus the declared group count.
func (p *Program) validate() error {
	ni := len(p.Insts)
	if ni == 0 {
		return rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos, "empty program")
	}

	badInst := func(pc int, format string, args ...any) error {
		msg := fmt.Sprintf(format, args...)
		return rifterr.Newf(rifterr.KindInvalidArgument, rifterr.NoPos,
			"instruction %d: %s", pc, msg)
	}
	checkJump := func(pc int, rel int32) error {
		t := pc + int(rel)
		if t < 0 || t >= ni {
			return badInst(pc, "jump target %d out of range", t)
		}
		return nil
	}

	for pc, in := range p.Insts {
		switch in.Op {
		case OpChar:
			if in.X < 0 || in.X > 0xFF || in.Y&^foldCompare != 0 {
				return badInst(pc, "bad CHAR operands %d, %d", in.X, in.Y)
			}
		case OpAny:
			if in.X != 0 || in.Y&^(AnyDotAll|AnyUTF8) != 0 {
				return badInst(pc, "bad ANY operands %d, %d", in.X, in.Y)
			}
		case OpClass:
			if in.X < 0 || int(in.X) >= len(p.Classes) {
				return badInst(pc, "class %d of %d", in.X, len(p.Classes))
			}
		case OpMatch, OpFail, OpMark, OpCut:
			if in.X != 0 || in.Y != 0 {
				return badInst(pc, "unexpected operands on %s", in.Op)
			}
		case OpJmp:
			if err := checkJump(pc, in.X); err != nil {
				return err
			}
		case OpSplit:
			if err := checkJump(pc, in.X); err != nil {
				return err
			}
			if err := checkJump(pc, in.Y); err != nil {
				return err
			}
		case OpSaveStart, OpSaveEnd:
			if in.X < 0 || int(in.X) > p.NumGroups || in.Y != 0 {
				return badInst(pc, "save slot for group %d of %d", in.X, p.NumGroups)
			}
		case OpBackref:
			if in.X < 1 || int(in.X) > p.NumGroups || in.Y&^foldCompare != 0 {
				return badInst(pc, "backreference to group %d of %d", in.X, p.NumGroups)
			}
		case OpAssertStart:
			if (in.X != AssertInput && in.X != AssertLine) || in.Y != 0 {
				return badInst(pc, "start assertion kind %d", in.X)
			}
		case OpAssertEnd:
			if (in.X != AssertInput && in.X != AssertLine && in.X != AssertEndOrBreak) || in.Y != 0 {
				return badInst(pc, "end assertion kind %d", in.X)
			}
		case OpAssertWordBoundary:
			if (in.X != 0 && in.X != 1) || in.Y != 0 {
				return badInst(pc, "word boundary operand %d", in.X)
			}
		case OpLookahead, OpLookbehind:
			if in.X < 0 || int(in.X) >= len(p.Subs) || in.Y&^1 != 0 {
				return badInst(pc, "sub-program %d of %d", in.X, len(p.Subs))
			}
		case OpLoopSave:
			if in.X < 0 || in.X >= maxWireLoops || in.Y != 0 {
				return badInst(pc, "loop slot %d", in.X)
			}
		case OpLoopCheck:
			if in.X < 0 || in.X >= maxWireLoops {
				return badInst(pc, "loop slot %d", in.X)
			}
			if err := checkJump(pc, in.Y); err != nil {
				return err
			}
		default:
			return badInst(pc, "unknown opcode %d", uint8(in.Op))
		}
	}
	return nil
}

// collectLoopCount derives the loop-slot requirement from the highest
// slot any program in the tree touches.
func collectLoopCount(p *Program) int {
	n := 0
	for _, in := range p.Insts {
		if in.Op == OpLoopSave || in.Op == OpLoopCheck {
			if int(in.X)+1 > n {
				n = int(in.X) + 1
			}
		}
	}
	for _, sub := range p.Subs {
		if sn := collectLoopCount(sub); sn > n {
			n = sn
		}
	}
	return n
}

type wireReader struct {
	data []byte
	off  int
	err  error
}

func (r *wireReader) fail(msg string) {
	if r.err == nil {
		r.err = rifterr.New(rifterr.KindInvalidArgument, r.off, msg)
	}
}

func (r *wireReader) remaining() int {
	return len(r.data) - r.off
}

// take returns the next n bytes without copying; on underrun it fails
// the reader and returns nil.
func (r *wireReader) take(n int) []byte {
	if n < 0 || r.remaining() < n {
		r.fail("truncated input")
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *wireReader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *wireReader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *wireReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
