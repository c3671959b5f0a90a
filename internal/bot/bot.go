package bot

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"venuebot/internal/config"
	"venuebot/internal/db"
	"venuebot/internal/db/models"
	"venuebot/internal/ics"
	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	config     *config.Config
	db         *db.DB
	session    *discordgo.Session
	prompts    *prompts
	guilds     map[string]*guildState
	guildsMu   sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	isShutdown bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// guildState serializes all work on one guild's scheduling state.
type guildState struct {
	mu  sync.Mutex
	mgr *scheduling.Manager
}

// suspend runs fn with the guild unlocked. Callers must hold g.mu.
func (g *guildState) suspend(fn func()) {
	g.mu.Unlock()
	defer g.mu.Lock()
	fn()
}

func New(cfg *config.Config, database *db.DB) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers

	// Required permissions for posting schedules
	cfg.Discord.Permissions = int64(
		discordgo.PermissionViewChannel |
			discordgo.PermissionSendMessages |
			discordgo.PermissionSendMessagesInThreads |
			discordgo.PermissionCreatePublicThreads |
			discordgo.PermissionManageThreads |
			discordgo.PermissionEmbedLinks |
			discordgo.PermissionReadMessageHistory |
			discordgo.PermissionUseSlashCommands)

	appLog.Info("bot configured", "intents", session.Identify.Intents, "permissions", cfg.Discord.Permissions)

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		config:  cfg,
		db:      database,
		session: session,
		prompts: newPrompts(cfg.Scheduling.InteractionTimeout),
		guilds:  make(map[string]*guildState),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// guild returns the loaded state of guildID, loading it on first use.
func (b *Bot) guild(ctx context.Context, guildID string) (*guildState, error) {
	b.guildsMu.Lock()
	defer b.guildsMu.Unlock()
	if g, ok := b.guilds[guildID]; ok {
		return g, nil
	}
	mgr, err := b.loadManager(ctx, guildID)
	if err != nil {
		return nil, err
	}
	g := &guildState{mgr: mgr}
	b.guilds[guildID] = g
	return g, nil
}

func (b *Bot) loadManager(ctx context.Context, guildID string) (*scheduling.Manager, error) {
	roster := scheduling.NewRoster()
	positions, err := b.db.ListPositions(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error loading positions: %w", err)
	}
	for _, p := range positions {
		roster.PutPosition(positionFromRecord(p))
	}
	staff, err := b.db.ListStaff(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error loading staff: %w", err)
	}
	for _, s := range staff {
		roster.PutStaff(staffFromRecord(s))
	}

	sched := b.config.Scheduling
	rec, err := b.db.LoadEventSystem(ctx, guildID, models.EventSystemRecord{
		EventLockout: sched.DefaultLockoutMinutes,
		Timezone:     sched.Timezone,
	})
	if err != nil {
		return nil, err
	}
	mgr := scheduling.NewManager(scheduling.Options{
		GuildID:             guildID,
		Store:               b.db,
		Poster:              newPoster(b.session, guildID),
		Roster:              roster,
		Location:            b.config.Location(),
		TemplateHorizonDays: sched.TemplateHorizonDays,
		MaxRecurrence:       sched.MaxRecurrence,
	})
	mgr.LoadAll(rec)
	return mgr, nil
}

// withGuild runs fn while holding the guild's lock.
func (b *Bot) withGuild(ctx context.Context, guildID string, fn func(g *guildState) error) error {
	g, err := b.guild(ctx, guildID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g)
}

func (b *Bot) loadedGuildIDs() []string {
	b.guildsMu.Lock()
	defer b.guildsMu.Unlock()
	ids := make([]string, 0, len(b.guilds))
	for id := range b.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RefreshPosts re-renders stale and newly locked posts in every loaded guild.
func (b *Bot) RefreshPosts(ctx context.Context) (int, error) {
	total := 0
	var firstErr error
	for _, guildID := range b.loadedGuildIDs() {
		err := b.withGuild(ctx, guildID, func(g *guildState) error {
			n, err := g.mgr.RefreshPosts(ctx)
			total += n
			return err
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

// Calendar renders the upcoming events of a guild as an iCalendar document.
// Only guilds with stored settings are served.
func (b *Bot) Calendar(ctx context.Context, guildID string) ([]byte, error) {
	b.guildsMu.Lock()
	g, ok := b.guilds[guildID]
	b.guildsMu.Unlock()
	if !ok {
		known, err := b.db.GuildIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing guilds: %w", err)
		}
		if !slices.Contains(known, guildID) {
			return nil, scheduling.ErrNotFound
		}
		if g, err = b.guild(ctx, guildID); err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return ics.Export(g.mgr.Events(), ics.Options{
		Name:     getServerName(b.session, guildID),
		Location: g.mgr.Location(),
		Now:      g.mgr.Now(),
	})
}

// registerGuildCommands registers commands for a guild with retries.
func (b *Bot) registerGuildCommands(guildID string) error {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := b.registerGuildCommandsOnce(guildID)
		if err == nil {
			return nil
		}
		lastErr = err
		appLog.Warn("command registration attempt failed", "guild", guildID, "attempt", i+1, "err", err)
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return fmt.Errorf("failed to register commands after %d attempts: %w", maxRetries, lastErr)
}

func (b *Bot) registerGuildCommandsOnce(guildID string) error {
	serverName := getServerName(b.session, guildID)
	appLog.Info("registering commands", "guild", guildID, "server", serverName)

	existing, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guildID)
	if err != nil {
		return fmt.Errorf("error getting existing commands: %w", err)
	}
	for _, v := range existing {
		if err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guildID, v.ID); err != nil {
			appLog.Warn("failed to delete command", "guild", guildID, "command", v.Name, "err", err)
		}
	}

	// Wait a moment to ensure all deletions are processed
	time.Sleep(time.Second)

	for _, v := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.config.Discord.ClientID, guildID, v); err != nil {
			return fmt.Errorf("error creating command %s: %w", v.Name, err)
		}
		appLog.Debug("registered command", "guild", guildID, "command", v.Name)
	}
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	appLog.Info("starting venuebot")

	// Keep trying to connect until successful
	for {
		if _, err := b.session.User("@me"); err != nil {
			appLog.Warn("failed to connect to Discord API, retrying in 5 seconds", "err", err)
			select {
			case <-ctx.Done():
				return b.Shutdown()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		appLog.Info("connected to Discord API")
		break
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)

	for {
		if err := b.session.Open(); err != nil {
			appLog.Warn("error opening Discord session, retrying in 5 seconds", "err", err)
			select {
			case <-ctx.Done():
				return b.Shutdown()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		appLog.Info("session opened", "session", b.session.State.SessionID)
		break
	}

	for _, guild := range b.session.State.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			appLog.Error("error registering commands", err, "guild", guild.ID)
		}
	}

	// guilds joined from now on
	b.session.AddHandler(b.handleGuildCreate)

	appLog.Info("bot is now running")

	<-ctx.Done()
	return b.Shutdown()
}

// Shutdown performs a graceful shutdown of the bot
func (b *Bot) Shutdown() error {
	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		return nil
	}
	b.isShutdown = true
	b.mu.Unlock()

	appLog.Info("initiating graceful shutdown")

	// open prompts resolve as cancelled
	b.cancel()

	appLog.Info("waiting for active handlers to complete")
	b.wg.Wait()

	for _, guild := range b.session.State.Guilds {
		registered, err := b.session.ApplicationCommands(b.config.Discord.ClientID, guild.ID)
		if err != nil {
			appLog.Warn("error getting commands", "guild", guild.ID, "err", err)
			continue
		}
		for _, cmd := range registered {
			if err := b.session.ApplicationCommandDelete(b.config.Discord.ClientID, guild.ID, cmd.ID); err != nil {
				appLog.Warn("failed to remove command", "guild", guild.ID, "command", cmd.Name, "err", err)
			}
		}
	}

	appLog.Info("closing Discord session")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("error closing Discord session: %w", err)
	}

	appLog.Info("shutdown completed")
	return nil
}

// begin registers an in-flight handler. It reports false once shutdown started.
func (b *Bot) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	appLog.Info("bot is ready", "guilds", len(r.Guilds))

	for _, guild := range r.Guilds {
		if _, err := b.guild(b.ctx, guild.ID); err != nil {
			appLog.Error("error loading guild", err, "guild", guild.ID)
		}
	}
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	appLog.Info("bot joined guild", "guild", g.ID, "server", g.Name)

	if _, err := b.guild(b.ctx, g.ID); err != nil {
		appLog.Error("error loading guild", err, "guild", g.ID)
	}
	if err := b.registerGuildCommands(g.ID); err != nil {
		appLog.Error("error registering commands", err, "guild", g.ID)
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.begin() {
		return
	}
	defer b.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			appLog.Error("panic in interaction handler", fmt.Errorf("%v", r),
				"user", interactionUsername(i), "guild", i.GuildID, "stack", string(buf[:n]))
			if i.Type == discordgo.InteractionApplicationCommand {
				editResponse(s, i, "An internal error occurred")
			}
		}
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name

	if i.GuildID == "" {
		respondWithError(s, i, fmt.Sprintf("The `/%s` command can only be used in a server", commandName))
		return
	}

	// Add initial acknowledgment for long-running commands
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logInteractionError(i, "acknowledging interaction", err)
		return
	}

	logCommand(i, commandName)

	switch commandName {
	case "event":
		b.handleEvent(s, i)
	case "shift":
		b.handleShift(s, i)
	case "staffing":
		b.handleStaffing(s, i)
	case "template":
		b.handleTemplate(s, i)
	case "schedule":
		b.handleSchedule(s, i)
	case "position":
		b.handlePosition(s, i)
	case "staff":
		b.handleStaff(s, i)
	default:
		appLog.Warn("unknown command", "guild", i.GuildID, "command", commandName)
		editResponse(s, i, "Unknown command")
	}
}

// handleComponent routes button and select menu clicks.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()

	if key, action, ok := parsePromptCustomID(data.CustomID); ok {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			logInteractionError(i, "acknowledging prompt", err)
		}
		if !b.prompts.answer(key, promptAnswer{Action: action, Values: data.Values}) {
			appLog.Debug("answer for expired prompt", "guild", i.GuildID, "prompt", key)
		}
		return
	}

	if positionID, ok := scheduling.ParseSignupCustomID(data.CustomID); ok {
		b.handleSignupButton(s, i, positionID)
		return
	}

	appLog.Warn("unknown component", "guild", i.GuildID, "custom_id", data.CustomID)
}
