// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"slices"
	"testing"

	"github.com/pkgsmith/pkgsmith/pkg/types"
)

func TestSelection(t *testing.T) {
	t.Parallel()

	host, hostKnown := types.HostArch()
	tests := []struct {
		name       string
		flags      buildFlags
		wantArches []types.Arch
		hostOnly   bool
	}{
		{name: "host by default", flags: buildFlags{}, hostOnly: true},
		{name: "cross builds everything", flags: buildFlags{cross: true}},
		{name: "explicit arch", flags: buildFlags{arches: []string{"aarch64", "x86"}}, wantArches: []types.Arch{types.ArchAArch64, types.ArchX86}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := selection(tt.flags)
			if tt.hostOnly && !hostKnown {
				if err == nil {
					t.Error("selection() succeeded on an unknown host architecture")
				}
				return
			}
			if err != nil {
				t.Fatalf("selection() error: %v", err)
			}
			want := tt.wantArches
			if tt.hostOnly {
				want = []types.Arch{host}
			}
			if !slices.Equal(opts.Arches, want) {
				t.Errorf("arches = %v, want %v", opts.Arches, want)
			}
		})
	}
}

func TestSelection_ParsesLists(t *testing.T) {
	t.Parallel()

	opts, err := selection(buildFlags{
		targets:     []string{"deb", "nsis"},
		oses:        []string{"linux"},
		cross:       true,
		ignoreError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(opts.Targets, []types.Target{types.TargetDeb, types.TargetNsis}) {
		t.Errorf("targets = %v", opts.Targets)
	}
	if !slices.Equal(opts.OSFamilies, []types.OSFamily{types.OSLinux}) || !opts.IgnoreError {
		t.Errorf("opts = %+v", opts)
	}
}

func TestSelection_JoinsErrors(t *testing.T) {
	t.Parallel()

	_, err := selection(buildFlags{targets: []string{"msi"}, arches: []string{"sparc"}})
	if err == nil {
		t.Fatal("selection() accepted invalid values")
	}
	if !errors.Is(err, types.ErrInvalidArch) {
		t.Errorf("error = %v, want ErrInvalidArch in the chain", err)
	}
}
