// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "reolink-feed")
	viper.SetDefault("main.timeas24h", true)
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "reolink-feed.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("feed.enabledlabels", []string{"person", "visitor"})
	viper.SetDefault("feed.retentionhours", 24)
	viper.SetDefault("feed.maxdetections", 100)
	viper.SetDefault("feed.mergewindowseconds", 20)
	viper.SetDefault("feed.snapshotdelay", 1.0)
	viper.SetDefault("feed.listlimit", 200)
	viper.SetDefault("feed.cleanupinterval", 3600)
	viper.SetDefault("feed.storepath", "feed/items.json")
	viper.SetDefault("feed.mediaroot", "media/")
	viper.SetDefault("feed.mediasourceid", "local")
	viper.SetDefault("feed.cacherecordings", false)
	viper.SetDefault("feed.maxstoragegb", 5.0)
	viper.SetDefault("feed.recordingretrydelays", []int{10, 30, 60, 120, 300})
	viper.SetDefault("feed.windowstartpad", 10)
	viper.SetDefault("feed.windowendpad", 30)
	viper.SetDefault("feed.defaultclipduration", 30)

	viper.SetDefault("hub.baseurl", "http://127.0.0.1:8123")
	viper.SetDefault("hub.token", "")
	viper.SetDefault("hub.timeout", 30)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")
	viper.SetDefault("webserver.debug", false)
}
