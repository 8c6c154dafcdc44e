package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// TableID identifies a table on the server
type TableID uint64

func (id TableID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseTableID reads a table id from its decimal form
func ParseTableID(s string) (TableID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid table id %q: %w", s, err)
	}
	return TableID(n), nil
}

// SelectorKind picks how the next hand's variant is chosen
type SelectorKind string

const (
	SelectorRotation      SelectorKind = "Rotation"
	SelectorDealersChoice SelectorKind = "DealersChoice"
)

// VariantSelector lists the variants a table plays
type VariantSelector struct {
	Kind  SelectorKind
	Descs []VariantDesc
}

type variantSelectorData struct {
	Descs []VariantDesc `json:"descs"`
}

func (v VariantSelector) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case SelectorRotation, SelectorDealersChoice:
		return marshalTagged(string(v.Kind), variantSelectorData{Descs: v.Descs})
	default:
		return nil, fmt.Errorf("%w: selector %q", ErrUnknownKind, v.Kind)
	}
}

func (v *VariantSelector) UnmarshalJSON(b []byte) error {
	t, err := unmarshalTagged(b)
	if err != nil {
		return err
	}
	switch SelectorKind(t.Kind) {
	case SelectorRotation, SelectorDealersChoice:
	default:
		return fmt.Errorf("%w: selector %q", ErrUnknownKind, t.Kind)
	}
	var data variantSelectorData
	if err := decodeData(t, &data); err != nil {
		return err
	}
	*v = VariantSelector{Kind: SelectorKind(t.Kind), Descs: data.Descs}
	return nil
}

// TableConfig is the table's fixed configuration
type TableConfig struct {
	MaxPlayers      int              `json:"max_players"`
	StartingChips   int64            `json:"starting_chips"`
	VariantSelector *VariantSelector `json:"variant_selector,omitempty"`
}

// AnteChangeKind says how the ante grows over time
type AnteChangeKind string

const (
	AnteConstant         AnteChangeKind = "Constant"
	AnteMulEveryNRounds  AnteChangeKind = "MulEveryNRounds"
	AnteMulEveryNSeconds AnteChangeKind = "MulEveryNSeconds"
)

// AnteRuleChange is the growth schedule of the ante
type AnteRuleChange struct {
	Kind    AnteChangeKind
	Mul     int64
	Rounds  int
	Seconds uint32
}

type mulEveryNRounds struct {
	Mul    int64 `json:"mul"`
	Rounds int   `json:"rounds"`
}

type mulEveryNSeconds struct {
	Mul     int64  `json:"mul"`
	Seconds uint32 `json:"seconds"`
}

func (c AnteRuleChange) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case AnteConstant, "":
		return marshalTagged(string(AnteConstant), nil)
	case AnteMulEveryNRounds:
		return marshalTagged(string(c.Kind), mulEveryNRounds{Mul: c.Mul, Rounds: c.Rounds})
	case AnteMulEveryNSeconds:
		return marshalTagged(string(c.Kind), mulEveryNSeconds{Mul: c.Mul, Seconds: c.Seconds})
	default:
		return nil, fmt.Errorf("%w: ante change %q", ErrUnknownKind, c.Kind)
	}
}

func (c *AnteRuleChange) UnmarshalJSON(b []byte) error {
	t, err := unmarshalTagged(b)
	if err != nil {
		return err
	}
	switch AnteChangeKind(t.Kind) {
	case AnteConstant:
		*c = AnteRuleChange{Kind: AnteConstant}
	case AnteMulEveryNRounds:
		var d mulEveryNRounds
		if err := decodeData(t, &d); err != nil {
			return err
		}
		*c = AnteRuleChange{Kind: AnteMulEveryNRounds, Mul: d.Mul, Rounds: d.Rounds}
	case AnteMulEveryNSeconds:
		var d mulEveryNSeconds
		if err := decodeData(t, &d); err != nil {
			return err
		}
		*c = AnteRuleChange{Kind: AnteMulEveryNSeconds, Mul: d.Mul, Seconds: d.Seconds}
	default:
		return fmt.Errorf("%w: ante change %q", ErrUnknownKind, t.Kind)
	}
	return nil
}

// AnteRuleDesc describes the forced bets of a table
type AnteRuleDesc struct {
	StartingValue int64          `json:"starting_value"`
	Blinds        bool           `json:"blinds"`
	Change        AnteRuleChange `json:"change"`
}

// TableParameters is the create_table request body
type TableParameters struct {
	TableConfig TableConfig  `json:"table_config"`
	AnteRule    AnteRuleDesc `json:"ante_rule"`
}

// AuthToken is the opaque bearer credential issued by the server. It
// travels as a JSON array of byte values, both in ServerUpdate and in the
// Authorization header.
type AuthToken []byte

func (t AuthToken) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, b := range t {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", b)
	}
	sb.WriteByte(']')
	return []byte(sb.String()), nil
}

func (t *AuthToken) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = nil
		return nil
	}
	// []byte decodes from base64, so go through ints.
	var ints []int
	if err := codec.Unmarshal(b, &ints); err != nil {
		return fmt.Errorf("auth token: %w", err)
	}
	values := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("auth token: byte %d out of range: %d", i, v)
		}
		values[i] = uint8(v)
	}
	*t = values
	return nil
}

// Empty reports whether no credential has been issued
func (t AuthToken) Empty() bool {
	return len(t) == 0
}

// Header renders the Authorization header value
func (t AuthToken) Header() string {
	b, _ := t.MarshalJSON()
	return "Basic " + string(b)
}

// ParseAuthToken reads a token from its JSON array text
func ParseAuthToken(s string) (AuthToken, error) {
	var t AuthToken
	if err := t.UnmarshalJSON([]byte(strings.TrimSpace(s))); err != nil {
		return nil, err
	}
	return t, nil
}
