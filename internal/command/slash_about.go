package command

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"maplebgm-bot/internal/version"
)

type AboutCommand struct{}

func (c *AboutCommand) Name() string        { return "about" }
func (c *AboutCommand) Description() string { return "Discover the origin of this bot" }
func (c *AboutCommand) Group() string       { return "core" }

func (c *AboutCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *AboutCommand) Run(ctx *SlashContext) error {
	buildDate := "unknown"
	if t, err := time.Parse(time.RFC3339, version.BuildDate); err == nil {
		buildDate = t.Format("2006-01-02")
	}

	goVer := strings.TrimPrefix(version.GoVersion, "go")
	if goVer == "" {
		goVer = "unknown"
	}

	e := embed.NewEmbed().
		SetTitle("ℹ️ About "+version.AppName).
		SetDescription(version.AppDescription).
		AddField("Music data", "[maplestory.io](https://maplestory.io)").
		AddField("Release", version.AppVersion+" · "+buildDate+" (Go "+goVer+")").
		SetColor(EmbedColor).
		MessageEmbed
	return RespondEmbed(ctx.Session, ctx.Event, e)
}
