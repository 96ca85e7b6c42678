package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// LogPublisher only logs, for development without Discord or NATS
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.logger.Info("announcement",
		slog.String("job_id", msg.JobID.String()),
		slog.String("kind", string(msg.Kind)),
		slog.String("title", msg.Title))
	return nil
}

// ChannelSender is the part of *discordgo.Session used to post announcements.
type ChannelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

const (
	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
	colorGold  = 0xf1c40f
	colorRed   = 0xe74c3c
	colorGrey  = 0x95a5a6
)

type DiscordPublisher struct {
	sender    ChannelSender
	channelID string
}

func NewDiscordPublisher(sender ChannelSender, channelID string) *DiscordPublisher {
	return &DiscordPublisher{sender: sender, channelID: channelID}
}

func (p *DiscordPublisher) Publish(ctx context.Context, msg Message) error {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       embedColor(msg.Kind),
		Footer:      &discordgo.MessageEmbedFooter{Text: "ClanHub Tournaments"},
	}
	if !msg.CreatedAt.IsZero() {
		embed.Timestamp = msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	_, err := p.sender.ChannelMessageSendComplex(p.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}
	return nil
}

func embedColor(kind Kind) int {
	switch kind {
	case KindTournamentStarted, KindMatchReady:
		return colorBlue
	case KindMatchResult:
		return colorGreen
	case KindTournamentFinished:
		return colorGold
	case KindDisputeOpened:
		return colorRed
	}
	return colorGrey
}

// MsgPublisher is the part of *nats.Conn used to publish events.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type NATSPublisher struct {
	conn    MsgPublisher
	subject string
}

func NewNATSPublisher(conn MsgPublisher, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

type natsEnvelope struct {
	EventID      string       `json:"eventId"`
	EventType    Kind         `json:"eventType"`
	TournamentID string       `json:"tournamentId,omitempty"`
	Timestamp    string       `json:"timestamp"`
	Payload      Announcement `json:"payload"`
}

func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	envelope := natsEnvelope{
		EventID:   msg.JobID.String(),
		EventType: msg.Kind,
		Timestamp: msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Payload:   msg.Announcement,
	}
	if msg.TournamentID != nil {
		envelope.TournamentID = msg.TournamentID.String()
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	m := nats.NewMsg(fmt.Sprintf("%s.%s", p.subject, msg.Kind))
	m.Data = data
	// Lets JetStream drop redeliveries of the same job
	m.Header.Set(nats.MsgIdHdr, msg.JobID.String())

	if err := p.conn.PublishMsg(m); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}
	return nil
}

// Fanout publishes to every publisher and fails if any of them failed.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
