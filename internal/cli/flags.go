package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/roach88/kvbridge/internal/bridge"
	"github.com/roach88/kvbridge/internal/store"
)

// seekModeValue is a pflag.Value for --mode.
type seekModeValue struct {
	mode bridge.SeekMode
}

var _ pflag.Value = (*seekModeValue)(nil)

func (v *seekModeValue) String() string { return v.mode.String() }

func (v *seekModeValue) Set(s string) error {
	m, err := bridge.ParseSeekMode(s)
	if err != nil {
		return err
	}
	v.mode = m
	return nil
}

func (v *seekModeValue) Type() string { return "mode" }

// codecValue is a pflag.Value for --codec. An empty value keeps the codec
// from the configuration.
type codecValue struct {
	name string
}

var _ pflag.Value = (*codecValue)(nil)

func (v *codecValue) String() string { return v.name }

func (v *codecValue) Set(s string) error {
	s = strings.ToLower(s)
	if !slices.Contains(store.ValidCodecs, s) {
		return fmt.Errorf("must be one of %v", store.ValidCodecs)
	}
	v.name = s
	return nil
}

func (v *codecValue) Type() string { return "codec" }
