package version

var (
	AppName        = "MapleBGM"
	AppFullName    = "MapleBGM Bot"
	AppDescription = "Streams MapleStory background music into Discord voice channels"
	AppVersion     = "dev"
	BuildDate      = "unknown"
	GoVersion      = "unknown"
)
