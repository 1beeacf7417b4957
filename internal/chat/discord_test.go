package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/core"
	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

type fakeSession struct {
	channels   []*discordgo.Channel
	channelErr error
	sent       []string
	registered []*discordgo.ApplicationCommand
	responses  []discordgo.InteractionResponseType
	edits      []string
	followups  []string
	unbounded  []string // calls made without a deadline
}

// track applies the request options the way discordgo does and records calls
// whose context carries no deadline.
func (f *fakeSession) track(call string, opts []discordgo.RequestOption) {
	req, _ := http.NewRequest(http.MethodGet, "https://discord.test", nil)
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range opts {
		opt(cfg)
	}
	if _, ok := cfg.Request.Context().Deadline(); !ok {
		f.unbounded = append(f.unbounded, call)
	}
}

func (f *fakeSession) GuildChannels(_ string, opts ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.track("GuildChannels", opts)
	return f.channels, nil
}

func (f *fakeSession) Channel(id string, opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.track("Channel", opts)
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	for _, ch := range f.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, errors.New("unknown channel")
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.track("ChannelMessageSend", opts)
	f.sent = append(f.sent, channelID+":"+content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ApplicationCommandBulkOverwrite(_ string, _ string, commands []*discordgo.ApplicationCommand, opts ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.track("ApplicationCommandBulkOverwrite", opts)
	f.registered = commands
	return commands, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	f.track("InteractionRespond", opts)
	f.responses = append(f.responses, resp.Type)
	return nil
}

func (f *fakeSession) InteractionResponseEdit(_ *discordgo.Interaction, newresp *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.track("InteractionResponseEdit", opts)
	f.edits = append(f.edits, *newresp.Content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.track("FollowupMessageCreate", opts)
	f.followups = append(f.followups, data.Content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) AddHandler(interface{}) func() { return func() {} }

type recordingHandler struct {
	got   []domain.Command
	reply core.Reply
}

func (h *recordingHandler) Handle(_ context.Context, cmd domain.Command) core.Reply {
	h.got = append(h.got, cmd)
	return h.reply
}

func testInteraction(name, channelId string) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: channelId,
		Member:    &discordgo.Member{User: &discordgo.User{ID: "user-1"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: name},
	}
}

func TestDiscord_ListChannelsKeepsTextChannels(t *testing.T) {
	s := &fakeSession{channels: []*discordgo.Channel{
		{ID: "1", Name: "dgg-relay", Type: discordgo.ChannelTypeGuildText},
		{ID: "2", Name: "Voice", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "3", Name: "Logs", Type: discordgo.ChannelTypeGuildCategory},
	}}
	got, err := NewDiscord(s, "guild", time.Second, zerolog.Nop()).ListChannels(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0].Id != "1" || got[0].Name != "dgg-relay" {
		t.Fatalf("unexpected channels %+v", got)
	}
}

func TestDiscord_RegisterCommands(t *testing.T) {
	s := &fakeSession{}
	if err := NewDiscord(s, "guild", time.Second, zerolog.Nop()).RegisterCommands(context.Background(), "app"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.registered) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(s.registered))
	}
	for i, name := range Commands {
		if s.registered[i].Name != string(name) || s.registered[i].Description == "" {
			t.Fatalf("unexpected command definition %+v", s.registered[i])
		}
	}
}

func TestDiscord_HandleInteractionRepliesOnce(t *testing.T) {
	s := &fakeSession{channels: []*discordgo.Channel{{ID: "c1", Name: "dgg-relay", Type: discordgo.ChannelTypeGuildText}}}
	h := &recordingHandler{reply: core.Reply{Chunks: []string{"Container dgg-relay restarted"}}}

	NewDiscord(s, "guild", time.Second, zerolog.Nop()).HandleInteraction(context.Background(), testInteraction("restart", "c1"), h)

	if len(h.got) != 1 {
		t.Fatalf("expected one command, got %d", len(h.got))
	}
	cmd := h.got[0]
	if cmd.Name != domain.CommandRestart || cmd.ChannelName != "dgg-relay" || cmd.UserId != "user-1" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if len(s.responses) != 1 || s.responses[0] != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("expected a single deferred acknowledgement, got %v", s.responses)
	}
	if len(s.edits) != 1 || s.edits[0] != "Container dgg-relay restarted" || len(s.followups) != 0 {
		t.Fatalf("unexpected reply: edits %q, followups %q", s.edits, s.followups)
	}
}

func TestDiscord_HandleInteractionSendsContinuations(t *testing.T) {
	s := &fakeSession{channels: []*discordgo.Channel{{ID: "c1", Name: "general", Type: discordgo.ChannelTypeGuildText}}}
	h := &recordingHandler{reply: core.Reply{Chunks: []string{"one", "two", "three"}}}

	NewDiscord(s, "guild", time.Second, zerolog.Nop()).HandleInteraction(context.Background(), testInteraction("status", "c1"), h)

	if len(s.edits) != 1 || s.edits[0] != "one" {
		t.Fatalf("unexpected first reply %q", s.edits)
	}
	if len(s.followups) != 2 || s.followups[0] != "two" || s.followups[1] != "three" {
		t.Fatalf("unexpected continuations %q", s.followups)
	}
}

func TestDiscord_HandleInteractionChannelLookupFailure(t *testing.T) {
	s := &fakeSession{channelErr: errors.New("missing access")}
	h := &recordingHandler{}

	NewDiscord(s, "guild", time.Second, zerolog.Nop()).HandleInteraction(context.Background(), testInteraction("stop", "c1"), h)

	if len(h.got) != 0 {
		t.Fatalf("expected no command to run, got %+v", h.got)
	}
	if len(s.edits) != 1 || s.edits[0] != "Failed to look up this channel" {
		t.Fatalf("unexpected reply %q", s.edits)
	}
}

func TestDiscord_StatusSkipsChannelLookup(t *testing.T) {
	s := &fakeSession{channelErr: errors.New("missing access")}
	h := &recordingHandler{reply: core.Reply{Chunks: []string{"report"}}}

	NewDiscord(s, "guild", time.Second, zerolog.Nop()).HandleInteraction(context.Background(), testInteraction("status", "c1"), h)

	if len(h.got) != 1 || h.got[0].Name != domain.CommandStatus {
		t.Fatalf("expected status to run, got %+v", h.got)
	}
	if len(s.edits) != 1 || s.edits[0] != "report" {
		t.Fatalf("unexpected reply %q", s.edits)
	}
}

func TestDiscord_SendWrapsChannel(t *testing.T) {
	s := &fakeSession{}
	if err := NewDiscord(s, "guild", time.Second, zerolog.Nop()).Send(context.Background(), "c1", "hello"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0] != "c1:hello" {
		t.Fatalf("unexpected sends %q", s.sent)
	}
}

func TestDiscord_EveryCallIsBounded(t *testing.T) {
	s := &fakeSession{channels: []*discordgo.Channel{{ID: "c1", Name: "dgg-relay", Type: discordgo.ChannelTypeGuildText}}}
	h := &recordingHandler{reply: core.Reply{Chunks: []string{"one", "two"}}}
	d := NewDiscord(s, "guild", time.Second, zerolog.Nop())
	ctx := context.Background()

	d.HandleInteraction(ctx, testInteraction("restart", "c1"), h)
	if _, err := d.ListChannels(ctx); err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if err := d.Send(ctx, "c1", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := d.RegisterCommands(ctx, "app"); err != nil {
		t.Fatalf("register commands: %v", err)
	}

	if len(s.followups) != 1 || len(s.edits) != 1 {
		t.Fatalf("expected one edit and one follow-up, got %q %q", s.edits, s.followups)
	}
	if len(s.unbounded) != 0 {
		t.Fatalf("calls made without a deadline: %v", s.unbounded)
	}
}
