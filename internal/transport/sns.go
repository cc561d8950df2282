// Package transport contains the provider adapters for the three delivery
// channels: AWS SNS for mobile push, Web Push for browsers, and SendGrid for
// email. Adapters translate provider errors into delivery outcomes; they hold
// no delivery policy of their own.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"waveline.io/courier/internal/config"
	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// SNSTransport sends mobile push notifications through AWS SNS platform
// endpoints.
type SNSTransport struct {
	client     *sns.Client
	iosARN     string
	androidARN string
}

// NewSNSTransport loads AWS credentials from the environment and builds the
// SNS client.
func NewSNSTransport(ctx context.Context, cfg config.SNSConfig) (*SNSTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSTransport{
		client:     sns.NewFromConfig(awsCfg),
		iosARN:     cfg.IOSApplicationARN,
		androidARN: cfg.AndroidApplicationARN,
	}, nil
}

// CreateEndpoint registers a device token with the platform application and
// returns the endpoint ARN to persist alongside the token.
func (t *SNSTransport) CreateEndpoint(ctx context.Context, platform domain.Platform, token string) (string, error) {
	var appARN string
	switch platform {
	case domain.PlatformIOS:
		appARN = t.iosARN
	case domain.PlatformAndroid:
		appARN = t.androidARN
	default:
		return "", apperrors.BadRequest(apperrors.CodeInvalidDeviceType,
			fmt.Sprintf("platform %q has no SNS application", platform))
	}

	out, err := t.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

// DeleteEndpoint removes the provider-side endpoint for a deregistered
// device. A missing endpoint is treated as already deleted.
func (t *SNSTransport) DeleteEndpoint(ctx context.Context, targetARN string) error {
	_, err := t.client.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{
		EndpointArn: aws.String(targetARN),
	})
	var nf *types.NotFoundException
	if errors.As(err, &nf) {
		return nil
	}
	return err
}

// apnsPayload is the APNS envelope published for iOS devices.
type apnsPayload struct {
	APS  apsBody           `json:"aps"`
	Data map[string]string `json:"data,omitempty"`
}

type apsBody struct {
	Alert apsAlert `json:"alert"`
	Sound string   `json:"sound"`
	Badge int      `json:"badge"`
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// gcmPayload is the FCM envelope published for Android devices.
type gcmPayload struct {
	Notification gcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type gcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SendPush publishes a rendered message to a device endpoint. badge is the
// recipient's current unread count, carried only on iOS.
func (t *SNSTransport) SendPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage, badge int) error {
	var (
		structureKey string
		inner        any
	)
	switch dev.Platform {
	case domain.PlatformIOS:
		structureKey = "APNS"
		inner = apnsPayload{
			APS: apsBody{
				Alert: apsAlert{Title: msg.Title, Body: msg.Body},
				Sound: "default",
				Badge: badge,
			},
			Data: msg.DeepLink,
		}
	case domain.PlatformAndroid:
		structureKey = "GCM"
		inner = gcmPayload{
			Notification: gcmNotification{Title: msg.Title, Body: msg.Body},
			Data:         msg.DeepLink,
		}
	default:
		return apperrors.BadRequest(apperrors.CodeInvalidDeviceType,
			fmt.Sprintf("platform %q cannot receive mobile push", dev.Platform))
	}

	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	envelope, err := json.Marshal(map[string]string{structureKey: string(innerJSON)})
	if err != nil {
		return fmt.Errorf("marshal push envelope: %w", err)
	}

	_, err = t.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(dev.TargetARN),
		Message:          aws.String(string(envelope)),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return classifySNSError(err)
	}
	return nil
}

// classifySNSError maps SNS failures onto the delivery error taxonomy.
// Disabled or missing endpoints are dead tokens; everything else is retried.
func classifySNSError(err error) error {
	var (
		disabled *types.EndpointDisabledException
		notFound *types.NotFoundException
		invalid  *types.InvalidParameterException
	)
	switch {
	case errors.As(err, &disabled), errors.As(err, &notFound), errors.As(err, &invalid):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}
}
