// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// DefaultDebPriority is written to the control record when none is configured.
	DefaultDebPriority = "utility"
	// DefaultRpmRelease is the spec Release when none is configured.
	DefaultRpmRelease = "1"
	// DefaultAppImageArtifactName is the AppImage file name template.
	DefaultAppImageArtifactName = "${product_name}-${version}-${arch}.${ext}"
	// DefaultRpmArtifactName is the RPM file name template.
	DefaultRpmArtifactName = "${name}-${version}-${arch}.${ext}"
	// DefaultNsisArtifactName is the installer file name template.
	DefaultNsisArtifactName = "${product_name} Setup ${version}.${ext}"

	// CompressionXZ selects xz for deb members.
	CompressionXZ Compression = "xz"
	// CompressionGzip selects gzip for deb members.
	CompressionGzip Compression = "gzip"

	// NsisCompressZlib selects zlib in SetCompressor.
	NsisCompressZlib NsisCompressMethod = "zlib"
	// NsisCompressBZip2 selects bzip2 in SetCompressor.
	NsisCompressBZip2 NsisCompressMethod = "bzip2"
	// NsisCompressLzma selects lzma in SetCompressor.
	NsisCompressLzma NsisCompressMethod = "lzma"
)

type (
	// Config is the decoded project document.
	Config struct {
		Metadata Metadata       `toml:"metadata"`
		Linux    *LinuxConfig   `toml:"linux,omitempty"`
		Windows  *WindowsConfig `toml:"windows,omitempty"`
		Tools    []ToolEntry    `toml:"tools,omitempty"`
	}

	// Metadata holds project-wide facts shared by every package format.
	Metadata struct {
		Name        string `toml:"name"`
		ProductName string `toml:"product_name"`
		AppID       string `toml:"app_id"`
		Description string `toml:"description"`
		Homepage    string `toml:"homepage"`
		Author      string `toml:"author"`
		Copyright   string `toml:"copyright,omitempty"`
		Company     string `toml:"company,omitempty"`
		Version     string `toml:"version"`
		BuildID     string `toml:"build_id"`
		License     string `toml:"license"`
		LicenseFile string `toml:"license_file,omitempty"`
		Workdir     string `toml:"workdir"`
		SrcDir      string `toml:"src_dir"`
	}

	// FileMode is an octal permission value such as 0o755.
	FileMode uint32

	// FileSet is a single manifest entry.
	FileSet struct {
		// From is a glob relative to metadata.src_dir.
		From string `toml:"from"`
		// To is relative to the staging root.
		To string `toml:"to"`
		// Filter restricts copied files to those matching one of the patterns.
		Filter []string `toml:"filter,omitempty"`
		// Mode, when set, replaces the permission bits of every copied file.
		Mode *FileMode `toml:"mode,omitempty"`
	}

	// FormatConfig is implemented by every per-format section.
	FormatConfig interface {
		// Files returns the format-specific manifest, nil when the shared one applies.
		Files() []FileSet
	}

	// LinuxConfig is the [linux] section.
	LinuxConfig struct {
		Arch     []types.Arch    `toml:"arch"`
		Targets  []types.Target  `toml:"targets"`
		Files    []FileSet       `toml:"files,omitempty"`
		Deb      *DebConfig      `toml:"deb,omitempty"`
		Rpm      *RpmConfig      `toml:"rpm,omitempty"`
		AppImage *AppImageConfig `toml:"app_image,omitempty"`
	}

	// WindowsConfig is the [windows] section.
	WindowsConfig struct {
		Arch    []types.Arch   `toml:"arch"`
		Targets []types.Target `toml:"targets"`
		Files   []FileSet      `toml:"files,omitempty"`
		Nsis    *NsisConfig    `toml:"nsis,omitempty"`
	}

	// Compression is the codec of deb control and data members.
	Compression string

	// DebConfig is the [linux.deb] section.
	DebConfig struct {
		Priority    string      `toml:"priority,omitempty"`
		Section     string      `toml:"section,omitempty"`
		Depends     string      `toml:"depends,omitempty"`
		Recommends  string      `toml:"recommends,omitempty"`
		Suggests    string      `toml:"suggests,omitempty"`
		Conflicts   string      `toml:"conflicts,omitempty"`
		Breaks      string      `toml:"breaks,omitempty"`
		Replaces    string      `toml:"replaces,omitempty"`
		Provides    string      `toml:"provides,omitempty"`
		Compression Compression `toml:"compression,omitempty"`
		FileList    []FileSet   `toml:"files,omitempty"`
	}

	// RpmConfig is the [linux.rpm] section.
	RpmConfig struct {
		RequiredPkgs []string  `toml:"required_pkgs,omitempty"`
		Release      string    `toml:"release,omitempty"`
		ArtifactName string    `toml:"artifact_name,omitempty"`
		FileList     []FileSet `toml:"files,omitempty"`
	}

	// AppImageConfig is the [linux.app_image] section.
	AppImageConfig struct {
		// ExeFiles are staged ELF files whose shared libraries are bundled.
		ExeFiles []string `toml:"exe_files,omitempty"`
		// EmbedLibs defaults to true.
		EmbedLibs    *bool     `toml:"embed_libs,omitempty"`
		ExcludeLibs  []string  `toml:"exclude_libs,omitempty"`
		ArtifactName string    `toml:"artifact_name,omitempty"`
		FileList     []FileSet `toml:"files,omitempty"`
	}

	// NsisCompressMethod is the compressor makensis uses for the installer payload.
	NsisCompressMethod string

	// NsisConfig is the [windows.nsis] section. Boolean fields are pointers
	// so that an absent key can take its documented default.
	NsisConfig struct {
		OneClick                           *bool              `toml:"one_click,omitempty"`
		PerMachine                         bool               `toml:"per_machine,omitempty"`
		AllowElevation                     *bool              `toml:"allow_elevation,omitempty"`
		AllowToChangeInstallationDirectory *bool              `toml:"allow_to_change_installation_directory,omitempty"`
		InstallerIcon                      string             `toml:"installer_icon,omitempty"`
		UninstallerIcon                    string             `toml:"uninstaller_icon,omitempty"`
		InstallerHeader                    string             `toml:"installer_header,omitempty"`
		InstallerHeaderIcon                string             `toml:"installer_header_icon,omitempty"`
		InstallerSidebar                   string             `toml:"installer_sidebar,omitempty"`
		UninstallerSidebar                 string             `toml:"uninstaller_sidebar,omitempty"`
		UninstallDisplayName               string             `toml:"uninstall_display_name,omitempty"`
		Include                            string             `toml:"include,omitempty"`
		Script                             string             `toml:"script,omitempty"`
		ArtifactName                       string             `toml:"artifact_name,omitempty"`
		DeleteAppDataOnUninstall           bool               `toml:"delete_app_data_on_uninstall,omitempty"`
		Unicode                            *bool              `toml:"unicode,omitempty"`
		GUID                               string             `toml:"guid,omitempty"`
		WarningsAsErrors                   *bool              `toml:"warnings_as_errors,omitempty"`
		RunAfterFinish                     *bool              `toml:"run_after_finish,omitempty"`
		RunOnStartup                       bool               `toml:"run_on_startup,omitempty"`
		CreateDesktopShortcut              *bool              `toml:"create_desktop_shortcut,omitempty"`
		CreateStartMenuShortcut            *bool              `toml:"create_start_menu_shortcut,omitempty"`
		CompressMethod                     NsisCompressMethod `toml:"compress_method,omitempty"`
		FileList                           []FileSet          `toml:"files,omitempty"`
	}

	// ToolEntry is one [[tools]] download.
	ToolEntry struct {
		Arch     types.Arch `toml:"arch"`
		URL      string     `toml:"url"`
		Filename string     `toml:"filename"`
		SHA256   string     `toml:"sha256"`
	}
)

// UnmarshalText accepts TOML integers in any base (0o755, 493) and the
// same spellings quoted as strings.
func (m *FileMode) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.ReplaceAll(string(text), "_", ""), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid file mode %q: %w", text, err)
	}
	*m = FileMode(v)
	return nil
}

// MarshalText writes the mode in 0o notation.
func (m FileMode) MarshalText() ([]byte, error) {
	return []byte("0o" + strconv.FormatUint(uint64(m), 8)), nil
}

// FSMode converts the octal value, including the setuid (04000), setgid
// (02000) and sticky (01000) bits, to an fs.FileMode.
func (m FileMode) FSMode() fs.FileMode {
	mode := fs.FileMode(m).Perm()
	if m&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if m&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if m&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

// Files implements FormatConfig.
func (c *DebConfig) Files() []FileSet {
	if c == nil {
		return nil
	}
	return c.FileList
}

// Files implements FormatConfig.
func (c *RpmConfig) Files() []FileSet {
	if c == nil {
		return nil
	}
	return c.FileList
}

// Files implements FormatConfig.
func (c *AppImageConfig) Files() []FileSet {
	if c == nil {
		return nil
	}
	return c.FileList
}

// Files implements FormatConfig.
func (c *NsisConfig) Files() []FileSet {
	if c == nil {
		return nil
	}
	return c.FileList
}

// PriorityOrDefault returns the configured priority or DefaultDebPriority.
func (c *DebConfig) PriorityOrDefault() string {
	if c.Priority == "" {
		return DefaultDebPriority
	}
	return c.Priority
}

// CompressionOrDefault returns the member codec, xz unless gzip is configured.
func (c *DebConfig) CompressionOrDefault() Compression {
	if c.Compression == "" {
		return CompressionXZ
	}
	return c.Compression
}

// Extension returns the archive suffix for the codec without the dot.
func (c Compression) Extension() string {
	if c == CompressionGzip {
		return "gz"
	}
	return "xz"
}

// ReleaseOrDefault returns the configured release or DefaultRpmRelease.
func (c *RpmConfig) ReleaseOrDefault() string {
	if c.Release == "" {
		return DefaultRpmRelease
	}
	return c.Release
}

// ArtifactNameOrDefault returns the file name template.
func (c *RpmConfig) ArtifactNameOrDefault() string {
	if c.ArtifactName == "" {
		return DefaultRpmArtifactName
	}
	return c.ArtifactName
}

// EmbedLibsEnabled reports whether shared libraries are bundled.
func (c *AppImageConfig) EmbedLibsEnabled() bool {
	return boolOr(c.EmbedLibs, true)
}

// ArtifactNameOrDefault returns the file name template.
func (c *AppImageConfig) ArtifactNameOrDefault() string {
	if c.ArtifactName == "" {
		return DefaultAppImageArtifactName
	}
	return c.ArtifactName
}

// ArtifactNameOrDefault returns the file name template.
func (c *NsisConfig) ArtifactNameOrDefault() string {
	if c.ArtifactName == "" {
		return DefaultNsisArtifactName
	}
	return c.ArtifactName
}

// CompressMethodOrDefault returns the configured compressor, lzma by default.
func (c *NsisConfig) CompressMethodOrDefault() NsisCompressMethod {
	if c.CompressMethod == "" {
		return NsisCompressLzma
	}
	return c.CompressMethod
}

// IsOneClick defaults to true.
func (c *NsisConfig) IsOneClick() bool { return boolOr(c.OneClick, true) }

// IsAllowElevation defaults to true.
func (c *NsisConfig) IsAllowElevation() bool { return boolOr(c.AllowElevation, true) }

// IsAllowChangeDir defaults to true.
func (c *NsisConfig) IsAllowChangeDir() bool {
	return boolOr(c.AllowToChangeInstallationDirectory, true)
}

// IsUnicode defaults to true.
func (c *NsisConfig) IsUnicode() bool { return boolOr(c.Unicode, true) }

// IsWarningsAsErrors defaults to true.
func (c *NsisConfig) IsWarningsAsErrors() bool { return boolOr(c.WarningsAsErrors, true) }

// IsRunAfterFinish defaults to true.
func (c *NsisConfig) IsRunAfterFinish() bool { return boolOr(c.RunAfterFinish, true) }

// IsCreateDesktopShortcut defaults to true.
func (c *NsisConfig) IsCreateDesktopShortcut() bool { return boolOr(c.CreateDesktopShortcut, true) }

// IsCreateStartMenuShortcut defaults to true.
func (c *NsisConfig) IsCreateStartMenuShortcut() bool {
	return boolOr(c.CreateStartMenuShortcut, true)
}

// ResolveFiles picks the format override when it is non-empty, else the
// shared manifest. A nil result means no manifest is configured.
func ResolveFiles(format FormatConfig, shared []FileSet) []FileSet {
	if format != nil {
		if files := format.Files(); len(files) > 0 {
			return files
		}
	}
	if len(shared) > 0 {
		return shared
	}
	return nil
}

// ExpandBuildID returns a copy of the config whose build identifier has been
// passed through expand. The receiver is left untouched.
func (c *Config) ExpandBuildID(expand func(string) (string, error)) (*Config, error) {
	id, err := expand(c.Metadata.BuildID)
	if err != nil {
		return nil, err
	}
	out := *c
	out.Metadata.BuildID = id
	return &out, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
