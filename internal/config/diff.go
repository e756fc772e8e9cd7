package config

import "slices"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ReleaseChanged and CatalogChanged need the host to be re-booted; they
	// cannot be applied while a session holds modifications.
	ReleaseChanged bool
	CatalogChanged bool

	// SourcesChanged means the patch sources differ, so the patch set must be
	// reloaded and reapplied.
	SourcesChanged bool

	// RestorePolicyChanged covers retry attempts and backoff.
	RestorePolicyChanged bool

	// ListenAddrChanged cannot be hot-reloaded; callers should warn.
	ListenAddrChanged bool
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return d == ConfigDiff{}
}

// NeedsReapply reports whether an applied patch set must be restored and
// applied again for the new config to take effect.
func (d ConfigDiff) NeedsReapply() bool {
	return d.SourcesChanged || d.ReleaseChanged || d.CatalogChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ListenAddrChanged = old.Server.ListenAddr != new.Server.ListenAddr
	d.ReleaseChanged = old.Runtime.Release != new.Runtime.Release
	d.CatalogChanged = old.Runtime.Catalog != new.Runtime.Catalog
	d.SourcesChanged = !slices.Equal(old.Patches.Sources, new.Patches.Sources) ||
		old.Patches.SuggestThreshold != new.Patches.SuggestThreshold
	d.RestorePolicyChanged = old.Restore != new.Restore

	return d
}
