// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestError_Message(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "context and cause",
			err:  New(KindGlob, "/src/*.so", errors.New("no file is matched with pattern")),
			want: "glob: /src/*.so: no file is matched with pattern",
		},
		{
			name: "cause only",
			err:  New(KindIO, "", errors.New("disk full")),
			want: "io: disk full",
		},
		{
			name: "context only",
			err:  &Error{Kind: KindFilesNotSet, Context: "deb"},
			want: "files-not-set: deb",
		},
		{
			name: "bare",
			err:  &Error{Kind: KindEncode},
			want: "encode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_IsMatchesKindSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("staging: %w", New(KindIO, "/tmp/x", fs.ErrPermission))

	if !errors.Is(err, ErrIO) {
		t.Error("expected errors.Is(err, ErrIO)")
	}
	if errors.Is(err, ErrGlob) {
		t.Error("IO error must not match ErrGlob")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("cause should remain reachable through Unwrap")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("cell deb/x86_64: %w", Errorf(KindProcess, "rpmbuild", "exit status %d", 1))
	kind, ok := KindOf(wrapped)
	if !ok || kind != KindProcess {
		t.Errorf("KindOf() = %q, %v; want %q, true", kind, ok, KindProcess)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf(plain error) should report false")
	}
}

func TestEveryKindHasSentinelAndIssue(t *testing.T) {
	t.Parallel()

	kinds := []Kind{
		KindConfig, KindFilesNotSet, KindGlob, KindIO, KindEncode,
		KindProcess, KindGitHash, KindEnvNotSet, KindChecksumMismatch, KindDownload,
	}
	for _, k := range kinds {
		if _, ok := sentinels[k]; !ok {
			t.Errorf("kind %q has no sentinel", k)
		}
		if Get(k) == nil {
			t.Errorf("kind %q has no issue page", k)
		}
	}
	if got := len(Values()); got != len(kinds) {
		t.Errorf("Values() returned %d issues, want %d", got, len(kinds))
	}
}
