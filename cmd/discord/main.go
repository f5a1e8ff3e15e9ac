package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/datastore"
	"maplebgm-bot/internal/command"
	"maplebgm-bot/internal/config"
	"maplebgm-bot/internal/discord"
	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/queue"
	"maplebgm-bot/internal/music/session"
	"maplebgm-bot/internal/music/source_resolver"
	"maplebgm-bot/internal/storage"
	"maplebgm-bot/internal/userdata"
	"maplebgm-bot/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("[ERR] ", err)
	}

	ds, err := datastore.New(cfg.StoragePath)
	if err != nil {
		log.Fatal("[ERR] Failed to open datastore: ", err)
	}
	defer ds.Close()
	guilds := storage.New(ds)

	users, err := userdata.NewStore(cfg.UserDataPath)
	if err != nil {
		log.Fatal("[ERR] Failed to open user data store: ", err)
	}

	api := maple.NewClient(cfg.MapleRegion, cfg.MapleVersion)

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal("[ERR] Failed to create Discord session: ", err)
	}

	player := session.New(
		discord.NewVoiceDialer(dg),
		source_resolver.New(api),
		queue.NewCoordinator(),
	)

	deps := &command.Deps{
		Player:  player,
		Maple:   api,
		Users:   users,
		Storage: guilds,
	}

	registry := command.NewRegistry(
		command.ApplyMiddlewares(&command.BGMCommand{}, command.WithGuildOnly(), command.WithCommandLogger()),
		command.ApplyMiddlewares(&command.QueueCommand{}, command.WithGuildOnly(), command.WithCommandLogger()),
		command.ApplyMiddlewares(&command.FavoritesCommand{}, command.WithGuildOnly(), command.WithCommandLogger()),
		command.ApplyMiddlewares(&command.PlaylistCommand{}, command.WithGuildOnly(), command.WithCommandLogger()),
		command.ApplyMiddlewares(&command.AboutCommand{}, command.WithGuildOnly()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[INFO] Starting %s %s...", version.AppFullName, version.AppVersion)
	bot := discord.NewBot(dg, cfg, registry, deps)
	if err := bot.Run(ctx); err != nil {
		log.Fatal("[ERR] ", err)
	}
}
