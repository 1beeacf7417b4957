package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/auto-dns/docker-discord-relay/internal/domain"
)

// Commands lists the slash commands the relay registers, in picker order.
var Commands = []domain.CommandName{
	domain.CommandStatus,
	domain.CommandStart,
	domain.CommandStop,
	domain.CommandRestart,
}

// Discord is the chat side of the relay: it lists and writes to the text
// channels of one guild and turns slash-command interactions into commands.
type Discord struct {
	session     discordSession
	guildId     string
	callTimeout time.Duration
	logger      zerolog.Logger
}

func NewDiscord(session discordSession, guildId string, callTimeout time.Duration, logger zerolog.Logger) *Discord {
	return &Discord{
		session:     session,
		guildId:     guildId,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// call bounds a single REST request by the configured call timeout.
func (d *Discord) call(ctx context.Context) (discordgo.RequestOption, context.CancelFunc) {
	if d.callTimeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return discordgo.WithContext(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, d.callTimeout)
	return discordgo.WithContext(ctx), cancel
}

// ListChannels returns the guild's text channels.
func (d *Discord) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	opt, cancel := d.call(ctx)
	defer cancel()
	channels, err := d.session.GuildChannels(d.guildId, opt)
	if err != nil {
		return nil, fmt.Errorf("list channels of guild %s: %w", d.guildId, err)
	}
	out := make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, domain.Channel{Id: ch.ID, Name: ch.Name})
	}
	return out, nil
}

func (d *Discord) Send(ctx context.Context, channelId, text string) error {
	opt, cancel := d.call(ctx)
	defer cancel()
	if _, err := d.session.ChannelMessageSend(channelId, text, opt); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// RegisterCommands replaces the guild's slash commands with the relay's.
func (d *Discord) RegisterCommands(ctx context.Context, appId string) error {
	defs := make([]*discordgo.ApplicationCommand, 0, len(Commands))
	for _, name := range Commands {
		defs = append(defs, &discordgo.ApplicationCommand{
			Name:        string(name),
			Description: name.Description(),
		})
	}
	opt, cancel := d.call(ctx)
	defer cancel()
	if _, err := d.session.ApplicationCommandBulkOverwrite(appId, d.guildId, defs, opt); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	d.logger.Info().Msgf("Registered %d slash commands", len(defs))
	return nil
}

// Listen routes slash-command interactions to handler until the returned
// function is called.
func (d *Discord) Listen(ctx context.Context, handler commandHandler) func() {
	return d.session.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		d.HandleInteraction(ctx, ic.Interaction, handler)
	})
}

// HandleInteraction acknowledges the interaction straight away, since
// lifecycle actions can outlast the acknowledgement deadline, then fills in
// the reply. Extra reply chunks are sent as follow-ups.
func (d *Discord) HandleInteraction(ctx context.Context, in *discordgo.Interaction, handler commandHandler) {
	data := in.ApplicationCommandData()
	logger := d.logger.With().Str("command", data.Name).Str("channel_id", in.ChannelID).Logger()

	deferred := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	opt, cancel := d.call(ctx)
	err := d.session.InteractionRespond(in, deferred, opt)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acknowledge interaction")
		return
	}

	cmd := domain.Command{
		Name:      domain.CommandName(data.Name),
		ChannelId: in.ChannelID,
		UserId:    interactionUser(in),
	}
	var chunks []string
	// Only lifecycle commands care which channel they were used in.
	if cmd.Name.IsLifecycle() {
		opt, cancel := d.call(ctx)
		channel, err := d.session.Channel(in.ChannelID, opt)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to look up invoking channel")
			chunks = []string{"Failed to look up this channel"}
		} else {
			cmd.ChannelName = channel.Name
		}
	}
	if chunks == nil {
		chunks = handler.Handle(ctx, cmd).Chunks
	}
	if len(chunks) == 0 {
		chunks = []string{"Done"}
	}

	content := chunks[0]
	opt, cancel = d.call(ctx)
	_, err = d.session.InteractionResponseEdit(in, &discordgo.WebhookEdit{Content: &content}, opt)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send command reply")
		return
	}
	for _, chunk := range chunks[1:] {
		opt, cancel := d.call(ctx)
		_, err := d.session.FollowupMessageCreate(in, true, &discordgo.WebhookParams{Content: chunk}, opt)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to send reply continuation")
			return
		}
	}
}

func interactionUser(in *discordgo.Interaction) string {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User.ID
	}
	if in.User != nil {
		return in.User.ID
	}
	return ""
}
