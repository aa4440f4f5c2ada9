package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the site name used in emails.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback site name.
	DefaultSiteName = "Notion Clone"
	// HousekeepingIntervalSecondsKey controls the purge sweep interval in seconds.
	HousekeepingIntervalSecondsKey = "HOUSEKEEPING_INTERVAL_SECONDS"
	// DefaultHousekeepingIntervalSeconds is the fallback sweep interval (seconds).
	DefaultHousekeepingIntervalSeconds = 3600
)
