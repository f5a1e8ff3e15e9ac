// Package discord wires the gateway session to the command registry
// and exposes the voice primitives the playback session needs.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/internal/command"
	"maplebgm-bot/internal/config"
)

// Bot is the Discord bot.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	registry *command.Registry
	deps     *command.Deps

	mu         sync.Mutex
	registered map[string]bool
}

// NewBot wires an already-created gateway session to the registry.
// The bot also serves as the commands' voice locator.
func NewBot(dg *discordgo.Session, cfg *config.Config, registry *command.Registry, deps *command.Deps) *Bot {
	b := &Bot{
		dg:         dg,
		cfg:        cfg,
		registry:   registry,
		deps:       deps,
		registered: make(map[string]bool),
	}
	deps.Voice = b
	return b
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onGuildCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

// Session exposes the underlying gateway session.
func (b *Bot) Session() *discordgo.Session { return b.dg }

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}

	if b.cfg.InitSlashCommands {
		for _, g := range r.Guilds {
			if err := b.registerCommands(g.ID); err != nil {
				log.Println("[ERR] Error registering slash commands for guild", g.ID, ":", err)
			}
		}
	} else {
		log.Println("[INFO] Registering slash commands skipped")
	}

	log.Printf("[INFO] ✅ Discord bot %v is running.", botInfo.Username)
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)

	if err := b.registerCommands(g.Guild.ID); err != nil {
		log.Printf("[ERR] Failed to register commands for new guild %s: %v", g.Guild.ID, err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmdName := i.ApplicationCommandData().Name
	cmd, ok := b.registry.Get(cmdName)
	if !ok {
		log.Printf("[WARN] Unknown command: %s", cmdName)
		return
	}

	ctx := &command.SlashContext{
		Ctx:     context.Background(),
		Session: s,
		Event:   i,
		Deps:    b.deps,
	}
	if err := cmd.Run(ctx); err != nil {
		log.Printf("[ERR] Error running slash command /%s: %v", cmdName, err)
	}
}

// registerCommands pushes the registry's definitions to one guild,
// deleting whatever Discord still carries that we no longer define.
func (b *Bot) registerCommands(guildID string) error {
	b.mu.Lock()
	if b.registered[guildID] {
		b.mu.Unlock()
		return nil
	}
	b.registered[guildID] = true
	b.mu.Unlock()

	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	wanted := b.registry.SlashDefinitions()
	wantedNames := make(map[string]bool, len(wanted))
	for _, def := range wanted {
		wantedNames[def.Name] = true
	}

	existing, _ := b.dg.ApplicationCommands(appID, guildID)
	for _, old := range existing {
		if !wantedNames[old.Name] {
			log.Printf("[INFO] [%s] Deleting obsolete command: %s", guildID, old.Name)
			if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
				log.Printf("[ERR] [%s] Failed to delete %s: %v", guildID, old.Name, err)
			}
		}
	}

	registerCommandsWithRateLimit(b, guildID, wanted)
	return nil
}

func registerCommandsWithRateLimit(b *Bot, guildID string, cmds []*discordgo.ApplicationCommand) {
	rateLimit := time.Second / 40
	ticker := time.NewTicker(rateLimit)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for _, job := range cmds {
		wg.Add(1)

		go func(cmd *discordgo.ApplicationCommand) {
			defer wg.Done()
			<-ticker.C

			_, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, guildID, cmd)
			if err != nil {
				log.Printf("[ERR] Can't create command %s: %v", cmd.Name, err)
			} else {
				log.Printf("[DONE] Command created: %s", cmd.Name)
			}
		}(job)
	}
	wg.Wait()
}
