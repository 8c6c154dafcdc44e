package action

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/lox/cardtable/internal/protocol"
)

// Selection is the set of hand cards picked for a replace, in click order
type Selection struct {
	max    int
	picked []int
}

func NewSelection(max int) *Selection {
	return &Selection{max: max}
}

// Toggle removes i if selected, otherwise adds it while under the bound.
// It reports whether the selection changed.
func (s *Selection) Toggle(i int) bool {
	if i < 0 {
		return false
	}
	for n, p := range s.picked {
		if p == i {
			s.picked = append(s.picked[:n], s.picked[n+1:]...)
			return true
		}
	}
	if len(s.picked) >= s.max {
		return false
	}
	s.picked = append(s.picked, i)
	return true
}

// Contains reports whether card i is selected
func (s *Selection) Contains(i int) bool {
	for _, p := range s.picked {
		if p == i {
			return true
		}
	}
	return false
}

func (s *Selection) Len() int { return len(s.picked) }

func (s *Selection) Max() int { return s.max }

// Indices returns the selected cards in click order
func (s *Selection) Indices() []int {
	return append([]int{}, s.picked...)
}

// Label is the text of the submit affordance
func (s *Selection) Label() string {
	return fmt.Sprintf("Replace %d cards", len(s.picked))
}

// Clone returns an independent copy
func (s *Selection) Clone() *Selection {
	return &Selection{max: s.max, picked: s.Indices()}
}

// Intent is the replace body for the current selection
func (s *Selection) Intent() protocol.ReplaceResp {
	return protocol.ReplaceResp(s.Indices())
}

// Choice is the dealer's pick of variant and special-card groups. The
// first variant is chosen until another is picked; changing the variant
// clears the enabled groups.
type Choice struct {
	variants []protocol.VariantDesc
	variant  int
	special  mapset.Set
}

func NewChoice(variants []protocol.VariantDesc) *Choice {
	return &Choice{variants: variants, special: mapset.NewSet()}
}

// Variants returns the offered variants
func (c *Choice) Variants() []protocol.VariantDesc {
	return c.variants
}

// Variant returns the chosen variant index
func (c *Choice) Variant() int {
	return c.variant
}

// Choose selects variant i
func (c *Choice) Choose(i int) error {
	if i < 0 || i >= len(c.variants) {
		return fmt.Errorf("%w: variant %d of %d", ErrOutOfRange, i, len(c.variants))
	}
	if i != c.variant {
		c.variant = i
		c.special.Clear()
	}
	return nil
}

// ToggleSpecial enables or disables special-card group i of the chosen
// variant.
func (c *Choice) ToggleSpecial(i int) error {
	if len(c.variants) == 0 {
		return fmt.Errorf("%w: no variants offered", ErrOutOfRange)
	}
	groups := c.variants[c.variant].SpecialCards
	if i < 0 || i >= len(groups) {
		return fmt.Errorf("%w: special card group %d of %d", ErrOutOfRange, i, len(groups))
	}
	if c.special.Contains(i) {
		c.special.Remove(i)
	} else {
		c.special.Add(i)
	}
	return nil
}

// Enabled reports whether special-card group i is enabled
func (c *Choice) Enabled(i int) bool {
	return c.special.Contains(i)
}

// Special returns the enabled group indices in ascending order
func (c *Choice) Special() []int {
	out := make([]int, 0, c.special.Cardinality())
	for _, v := range c.special.ToSlice() {
		out = append(out, v.(int))
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy
func (c *Choice) Clone() *Choice {
	return &Choice{variants: c.variants, variant: c.variant, special: c.special.Clone()}
}

// Intent is the dealers_choice body for the current choice
func (c *Choice) Intent() (protocol.DealersChoiceResp, error) {
	if len(c.variants) == 0 {
		return protocol.DealersChoiceResp{}, fmt.Errorf("%w: no variants offered", ErrOutOfRange)
	}
	return protocol.DealersChoiceResp{VariantIdx: c.variant, SpecialCards: c.Special()}, nil
}
