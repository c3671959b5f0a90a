package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const promptPrefix = "prompt:"

const (
	actionSelect  = "select"
	actionConfirm = "confirm"
	actionCancel  = "cancel"
)

// promptAnswer is what a user clicked or selected on a prompt message.
type promptAnswer struct {
	Action string
	Values []string
}

// prompts tracks prompt messages waiting for a component interaction.
type prompts struct {
	mu      sync.Mutex
	pending map[string]chan promptAnswer
	timeout time.Duration
}

func newPrompts(timeout time.Duration) *prompts {
	return &prompts{pending: make(map[string]chan promptAnswer), timeout: timeout}
}

// open registers a new prompt and returns its key.
func (p *prompts) open() (string, <-chan promptAnswer) {
	key := uuid.NewString()
	ch := make(chan promptAnswer, 1)
	p.mu.Lock()
	p.pending[key] = ch
	p.mu.Unlock()
	return key, ch
}

func (p *prompts) close(key string) {
	p.mu.Lock()
	delete(p.pending, key)
	p.mu.Unlock()
}

// answer delivers a to the prompt key. It reports false for unknown or
// already answered prompts.
func (p *prompts) answer(key string, a promptAnswer) bool {
	p.mu.Lock()
	ch, ok := p.pending[key]
	delete(p.pending, key)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- a
	return true
}

// wait blocks until the prompt is answered, ctx ends or the timeout
// elapses. The latter two are reported as scheduling.ErrCancelled.
func (p *prompts) wait(ctx context.Context, key string, ch <-chan promptAnswer) (promptAnswer, error) {
	defer p.close(key)
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case a := <-ch:
		if a.Action == actionCancel {
			return a, scheduling.ErrCancelled
		}
		return a, nil
	case <-timer.C:
		return promptAnswer{}, scheduling.ErrCancelled
	case <-ctx.Done():
		return promptAnswer{}, scheduling.ErrCancelled
	}
}

func promptCustomID(key, action string) string {
	return promptPrefix + key + ":" + action
}

// parsePromptCustomID splits "prompt:{key}:{action}".
func parsePromptCustomID(customID string) (key, action string, ok bool) {
	rest, ok := strings.CutPrefix(customID, promptPrefix)
	if !ok {
		return "", "", false
	}
	key, action, ok = strings.Cut(rest, ":")
	if !ok || key == "" || action == "" {
		return "", "", false
	}
	return key, action, true
}

// prompter asks the user behind one interaction through ephemeral follow-up
// messages. The guild lock is released while it waits.
type prompter struct {
	bot   *Bot
	s     *discordgo.Session
	i     *discordgo.InteractionCreate
	guild *guildState
}

var (
	_ scheduling.Chooser   = (*prompter)(nil)
	_ scheduling.Confirmer = (*prompter)(nil)
)

func (p *prompter) ask(ctx context.Context, content string, rows func(key string) []discordgo.MessageComponent) (promptAnswer, error) {
	key, ch := p.bot.prompts.open()
	msg, err := p.s.FollowupMessageCreate(p.i.Interaction, true, &discordgo.WebhookParams{
		Content:    content,
		Components: rows(key),
		Flags:      discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		p.bot.prompts.close(key)
		return promptAnswer{}, fmt.Errorf("error sending prompt: %w", err)
	}

	var answer promptAnswer
	p.guild.suspend(func() {
		answer, err = p.bot.prompts.wait(ctx, key, ch)
	})

	// clear the controls whatever the outcome
	done := "Done."
	if err != nil {
		done = "Cancelled."
	}
	empty := []discordgo.MessageComponent{}
	if _, editErr := p.s.FollowupMessageEdit(p.i.Interaction, msg.ID, &discordgo.WebhookEdit{
		Content:    &done,
		Components: &empty,
	}); editErr != nil {
		logInteractionError(p.i, "clearing prompt", editErr)
	}
	return answer, err
}

// choose shows a select menu and returns the chosen values.
func (p *prompter) choose(ctx context.Context, content string, options []discordgo.SelectMenuOption, maxValues int) ([]string, error) {
	if len(options) > 25 {
		options = options[:25]
	}
	if maxValues > len(options) {
		maxValues = len(options)
	}
	one := 1
	answer, err := p.ask(ctx, content, func(key string) []discordgo.MessageComponent {
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    promptCustomID(key, actionSelect),
					Placeholder: "Choose...",
					MinValues:   &one,
					MaxValues:   maxValues,
					Options:     options,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: promptCustomID(key, actionCancel)},
			}},
		}
	})
	if err != nil {
		return nil, err
	}
	return answer.Values, nil
}

func (p *prompter) ChooseBrackets(ctx context.Context, prompt string, options []*scheduling.ShiftBracket) ([]int64, error) {
	menu := make([]discordgo.SelectMenuOption, 0, len(options))
	for _, b := range options {
		menu = append(menu, discordgo.SelectMenuOption{
			Label: b.Range(),
			Value: strconv.FormatInt(b.ID, 10),
		})
	}
	values, err := p.choose(ctx, prompt, menu, len(menu))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := p.ask(ctx, prompt, func(key string) []discordgo.MessageComponent {
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Confirm", Style: discordgo.DangerButton, CustomID: promptCustomID(key, actionConfirm)},
				discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: promptCustomID(key, actionCancel)},
			}},
		}
	})
	if err != nil {
		if scheduling.KindOf(err) == scheduling.KindCancelled {
			return false, nil
		}
		return false, err
	}
	return answer.Action == actionConfirm, nil
}

// chooseClock asks for an hour out of hours and then a minute.
func (p *prompter) chooseClock(ctx context.Context, label string, hours []int) (scheduling.Clock, error) {
	hourOpts := make([]discordgo.SelectMenuOption, 0, len(hours))
	for _, h := range hours {
		hourOpts = append(hourOpts, discordgo.SelectMenuOption{Label: fmt.Sprintf("%02d:--", h), Value: strconv.Itoa(h)})
	}
	values, err := p.choose(ctx, "Choose the "+label+" hour", hourOpts, 1)
	if err != nil {
		return scheduling.Clock{}, err
	}
	hour, _ := strconv.Atoi(values[0])

	minuteOpts := make([]discordgo.SelectMenuOption, 0, len(scheduling.MinuteOptions))
	for _, m := range scheduling.MinuteOptions {
		minuteOpts = append(minuteOpts, discordgo.SelectMenuOption{Label: fmt.Sprintf("%02d:%02d", hour, m), Value: strconv.Itoa(m)})
	}
	values, err = p.choose(ctx, "Choose the "+label+" minute", minuteOpts, 1)
	if err != nil {
		return scheduling.Clock{}, err
	}
	minute, _ := strconv.Atoi(values[0])
	return scheduling.Clock{Hour: hour, Minute: minute}, nil
}
