package notification

import (
	"context"
	"fmt"
	"log"
	"strconv"

	authdomain "certhub-backend/internal/auth/domain"
	authrepo "certhub-backend/internal/auth/repository"
	certdomain "certhub-backend/internal/certificate/domain"
	"certhub-backend/pkg/fcm"
)

const certificatesClickAction = "/certificates"

// DeviceSender delivers one notification to many devices and reports the
// tokens that were rejected.
type DeviceSender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.Notification) ([]string, error)
}

// Pusher tells a user's registered devices about certificates found by a sync.
type Pusher struct {
	deviceRepo authrepo.DeviceTokenRepository
	sender     DeviceSender
}

func NewPusher(deviceRepo authrepo.DeviceTokenRepository, sender DeviceSender) *Pusher {
	return &Pusher{deviceRepo: deviceRepo, sender: sender}
}

func (p *Pusher) NotifyNewCertificates(ctx context.Context, user *authdomain.User, certs []*certdomain.Certificate) error {
	if len(certs) == 0 {
		return nil
	}

	devices, err := p.deviceRepo.GetTokensByUserID(user.ID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(devices) == 0 {
		log.Printf("[FCM] No devices registered for %s, skipping push", user.Email)
		return nil
	}
	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}

	failed, err := p.sender.SendToDevices(ctx, tokens, certificateNotification(user, certs))
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		log.Printf("[FCM] Forgetting %d rejected device tokens for %s", len(failed), user.Email)
		if err := p.deviceRepo.DeleteTokens(failed...); err != nil {
			log.Printf("[FCM] Failed to delete rejected tokens: %v", err)
		}
	}
	return nil
}

func certificateNotification(user *authdomain.User, certs []*certdomain.Certificate) fcm.Notification {
	first := certs[0]
	n := fcm.Notification{
		Title: "New certificate",
		Body:  fmt.Sprintf("%s: %s", first.Platform, truncate(first.CourseName, 100)),
		Data: map[string]string{
			"type":         "certificates_synced",
			"email":        user.Email,
			"count":        strconv.Itoa(len(certs)),
			"click_action": certificatesClickAction,
		},
	}
	if len(certs) > 1 {
		n.Title = fmt.Sprintf("%d new certificates", len(certs))
		n.Body = fmt.Sprintf("%s and %d more", n.Body, len(certs)-1)
	}
	return n
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
