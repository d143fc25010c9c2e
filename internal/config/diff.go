package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; input and
// telemetry settings need a restart and are deliberately absent.
type ConfigDiff struct {
	ProfilesChanged bool          // true if any profile tuning changed
	ProfileChanges  []ProfileDiff // per-profile diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// ProfileDiff describes what changed for a single profile between two configs.
type ProfileDiff struct {
	Name             string
	ThresholdChanged bool
	OnsetChanged     bool
	OffsetChanged    bool
	Added            bool
	Removed          bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build profile lookup maps keyed by name.
	oldProfiles := make(map[string]*ProfileConfig, len(old.Profiles))
	for i := range old.Profiles {
		oldProfiles[old.Profiles[i].Name] = &old.Profiles[i]
	}
	newProfiles := make(map[string]*ProfileConfig, len(new.Profiles))
	for i := range new.Profiles {
		newProfiles[new.Profiles[i].Name] = &new.Profiles[i]
	}

	// Detect modified and removed profiles.
	for name, oldP := range oldProfiles {
		newP, exists := newProfiles[name]
		if !exists {
			d.ProfileChanges = append(d.ProfileChanges, ProfileDiff{
				Name:    name,
				Removed: true,
			})
			d.ProfilesChanged = true
			continue
		}
		pd := diffProfile(name, oldP, newP)
		if pd.ThresholdChanged || pd.OnsetChanged || pd.OffsetChanged {
			d.ProfileChanges = append(d.ProfileChanges, pd)
			d.ProfilesChanged = true
		}
	}

	// Detect added profiles.
	for name := range newProfiles {
		if _, exists := oldProfiles[name]; !exists {
			d.ProfileChanges = append(d.ProfileChanges, ProfileDiff{
				Name:  name,
				Added: true,
			})
			d.ProfilesChanged = true
		}
	}

	return d
}

// diffProfile compares two profiles with the same name.
func diffProfile(name string, old, new *ProfileConfig) ProfileDiff {
	pd := ProfileDiff{Name: name}

	if old.SpeechThreshold != new.SpeechThreshold {
		pd.ThresholdChanged = true
	}

	if old.OnsetFrames != new.OnsetFrames || old.Onset != new.Onset {
		pd.OnsetChanged = true
	}

	if old.OffsetFrames != new.OffsetFrames || old.Offset != new.Offset {
		pd.OffsetChanged = true
	}

	return pd
}
