package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/logger"
	"nutritrack/models"
)

// snsAPI is the part of the SNS client the push service uses.
type snsAPI interface {
	CreatePlatformEndpoint(ctx context.Context, in *awssns.CreatePlatformEndpointInput, opts ...func(*awssns.Options)) (*awssns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, in *awssns.PublishInput, opts ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

type PushService struct {
	db             *gorm.DB
	sns            snsAPI
	fcmPlatformArn string
	log            *logger.Logger
}

// NewPushService builds the SNS-backed push sender. A nil client keeps
// device registration local and turns pushes into no-ops.
func NewPushService(db *gorm.DB, awsCfg *aws.Config, fcmPlatformArn string, log *logger.Logger) *PushService {
	p := &PushService{db: db, fcmPlatformArn: fcmPlatformArn, log: log.With("service", "PushService")}
	if awsCfg != nil && fcmPlatformArn != "" {
		p.sns = awssns.NewFromConfig(*awsCfg)
	}
	return p
}

type RegisterDeviceReq struct {
	Platform string `json:"platform" binding:"required"` // "android" | "ios"
	Token    string `json:"token" binding:"required"`
}

func tokenHash(tok string) string {
	h := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(h[:])
}

func (p *PushService) RegisterDevice(ctx context.Context, userID uint, platform, token string) (*models.UserDevice, error) {
	const op = "push.register"
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform != "android" && platform != "ios" {
		return nil, apperr.New(apperr.CodeValidation, op, "platform must be android or ios")
	}
	if strings.TrimSpace(token) == "" {
		return nil, apperr.New(apperr.CodeValidation, op, "token required")
	}

	endpoint := ""
	if p.sns != nil {
		out, err := p.sns.CreatePlatformEndpoint(ctx, &awssns.CreatePlatformEndpointInput{
			PlatformApplicationArn: aws.String(p.fcmPlatformArn),
			Token:                  aws.String(token),
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
		endpoint = aws.ToString(out.EndpointArn)
	}

	hash := tokenHash(token)
	var dev models.UserDevice
	err := p.db.WithContext(ctx).Where("user_id = ? AND token_hash = ?", userID, hash).First(&dev).Error
	switch {
	case err == nil:
		dev.EndpointARN = endpoint
		dev.Platform = platform
		dev.UpdatedAt = time.Now()
		err = p.db.WithContext(ctx).Save(&dev).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		dev = models.UserDevice{UserID: userID, Platform: platform, TokenHash: hash, EndpointARN: endpoint, Enabled: true}
		err = p.db.WithContext(ctx).Create(&dev).Error
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, op, err)
	}
	return &dev, nil
}

// SetNotifications enables or disables pushes on all of the user's devices.
func (p *PushService) SetNotifications(ctx context.Context, userID uint, enabled bool) error {
	err := p.db.WithContext(ctx).Model(&models.UserDevice{}).
		Where("user_id = ?", userID).
		Update("enabled", enabled).Error
	return apperr.Wrap(apperr.CodeStorage, "push.toggle", err)
}

func (p *PushService) PushToUser(ctx context.Context, userID uint, title, body string, data map[string]string) {
	if p.sns == nil {
		return
	}
	var endpoints []models.UserDevice
	if err := p.db.WithContext(ctx).Where("user_id = ? AND enabled = ?", userID, true).Find(&endpoints).Error; err != nil {
		p.log.Warn("push endpoints lookup failed", "user_id", userID, "error", err)
		return
	}

	gcm, _ := json.Marshal(map[string]any{
		"notification": map[string]string{"title": title, "body": body},
		"data":         data,
	})
	raw, _ := json.Marshal(map[string]string{"default": body, "GCM": string(gcm)})
	for _, d := range endpoints {
		if d.EndpointARN == "" {
			continue
		}
		_, err := p.sns.Publish(ctx, &awssns.PublishInput{
			MessageStructure: aws.String("json"),
			Message:          aws.String(string(raw)),
			TargetArn:        aws.String(d.EndpointARN),
		})
		if err != nil {
			p.log.Warn("push publish failed", "user_id", userID, "device_id", d.ID, "error", err)
		}
	}
}
