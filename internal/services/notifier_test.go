package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

func TestNotifierSend_Success_AuditsWithSID(t *testing.T) {
	db := newServiceDB(t)
	gw := &fakeGateway{}
	svc := NewNotifierService(db, gw)

	err := svc.Send(context.Background(), "u1", nil, domain.NotificationTest, "whatsapp:+306912345678", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := gw.Sent()
	if len(sent) != 1 || sent[0].To != "+306912345678" {
		t.Fatalf("gateway must receive the bare normalized number, got %+v", sent)
	}

	var rows []domain.Notification
	db.Find(&rows, "user_id = ?", "u1")
	if len(rows) != 1 {
		t.Fatalf("want 1 audit row, got %d", len(rows))
	}
	n := rows[0]
	if n.DeliveryStatus != domain.DeliverySent || n.MessageSID == nil || *n.MessageSID == "" {
		t.Fatalf("success row must carry sent status and a SID: %+v", n)
	}
	if n.PhoneNumber != "+306912345678" || n.Content != "hello" {
		t.Fatalf("unexpected audit fields: %+v", n)
	}
}

func TestNotifierSend_Failure_AuditsFailedRow(t *testing.T) {
	db := newServiceDB(t)
	gw := &fakeGateway{failuresFor: map[string]int{"+306912345678": 1}}
	svc := NewNotifierService(db, gw)

	err := svc.Send(context.Background(), "u1", nil, domain.NotificationTest, "+306912345678", "hello")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("want ErrSendFailed, got %v", err)
	}

	var rows []domain.Notification
	db.Find(&rows, "user_id = ?", "u1")
	if len(rows) != 1 {
		t.Fatalf("failures must be audited too, got %d rows", len(rows))
	}
	if rows[0].DeliveryStatus != domain.DeliveryFailed || rows[0].MessageSID != nil {
		t.Fatalf("failure row must carry failed status and no SID: %+v", rows[0])
	}
}
