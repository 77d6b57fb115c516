package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/stylebook/internal/models"
)

const notifyTimeout = 10 * time.Second

// Notifier tells staff about new bookings.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *models.AppointmentDetails) error
}

// NoopNotifier is used when no notification channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) AppointmentBooked(context.Context, *models.AppointmentDetails) error {
	return nil
}

// SESClient is the subset of the SES API used by SESNotifier.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier e-mails staff through AWS SES
type SESNotifier struct {
	client      SESClient
	fromAddress string
	toAddresses []string
	logger      *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, fromAddress string, toAddresses []string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, toAddresses, logger), nil
}

func NewSESNotifierWithClient(client SESClient, fromAddress string, toAddresses []string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:      client,
		fromAddress: fromAddress,
		toAddresses: toAddresses,
		logger:      logger,
	}
}

func (n *SESNotifier) AppointmentBooked(ctx context.Context, appt *models.AppointmentDetails) error {
	subject := fmt.Sprintf("Nuevo turno: %s %s", appt.ServiceName, appt.AppointmentAt.Format("02/01 15:04"))

	var body strings.Builder
	fmt.Fprintf(&body, "Cliente: %s\n", appt.ClientName)
	fmt.Fprintf(&body, "Telefono: %s\n", appt.ClientPhone)
	fmt.Fprintf(&body, "Servicio: %s\n", appt.ServiceName)
	fmt.Fprintf(&body, "Fecha: %s UTC\n", appt.AppointmentAt.UTC().Format("2006-01-02 15:04"))
	if appt.Notes != nil {
		fmt.Fprintf(&body, "Notas: %s\n", *appt.Notes)
	}
	fmt.Fprintf(&body, "\nEstado: %s. Confirmalo desde el panel de administracion.\n", appt.Status)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.toAddresses,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body.String()),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send booking notification: %w", err)
	}

	n.logger.Info("booking notification sent",
		slog.String("appointment_id", appt.ID),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
