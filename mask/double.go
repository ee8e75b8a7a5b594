package mask

// Double composes two masks: the passive-maker mask first strips off a
// passive part that is carried through untouched, and the frozen-maker mask
// then partitions the remainder into active and frozen channels.
//
// Split stashes the passive part until the matching Cat, so a Double is
// stateful and must not be shared across concurrent Split/Cat sequences.
type Double struct {
	passive Mask
	frozen  Mask
	stash   []float64
}

// NewDouble creates a Double from a passive-maker and a frozen-maker mask.
func NewDouble(passive, frozen Mask) *Double {
	return &Double{passive: passive, frozen: frozen}
}

// Split strips the passive part and partitions the remainder.
func (d *Double) Split(x []float64) ([]float64, []float64) {
	kept, passive := d.passive.Split(x)
	d.stash = passive
	return d.frozen.Split(kept)
}

// Cat reassembles the two channels and restores the passive part stashed by
// the preceding Split.
func (d *Double) Cat(ch0, ch1 []float64) []float64 {
	x := d.frozen.Cat(ch0, ch1)
	return d.passive.Cat(x, d.stash)
}

// Purify purifies through the frozen-maker mask and then through channel 0
// of the passive-maker mask; the passive part is never reachable here.
func (d *Double) Purify(x []float64, channel int) []float64 {
	return d.passive.Purify(d.frozen.Purify(x, channel), 0)
}
