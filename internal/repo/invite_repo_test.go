package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-remind-backend/internal/domain"
)

func TestAddInviteContact_AssignsIncreasingSeq(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()

	inv, err := CreateInvite(ctx, db, "Party", "Join us!")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	c1, err := AddInviteContact(ctx, db, inv.ID, "+301111111111")
	if err != nil {
		t.Fatalf("AddInviteContact: %v", err)
	}
	c2, err := AddInviteContact(ctx, db, inv.ID, "+302222222222")
	if err != nil {
		t.Fatalf("AddInviteContact: %v", err)
	}
	if c1.Seq <= 0 || c2.Seq <= c1.Seq {
		t.Fatalf("seq must strictly increase: %d then %d", c1.Seq, c2.Seq)
	}
}

func TestLatestSentInviteContactByPhone_NewestWinsTies(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()
	const phone = "+306912345678"

	older, _ := CreateInvite(ctx, db, "Old event", "m1")
	newer, _ := CreateInvite(ctx, db, "New event", "m2")

	c1, err := AddInviteContact(ctx, db, older.ID, phone)
	if err != nil {
		t.Fatalf("AddInviteContact: %v", err)
	}
	c2, err := AddInviteContact(ctx, db, newer.ID, phone)
	if err != nil {
		t.Fatalf("AddInviteContact: %v", err)
	}

	// Both invitations were delivered to the same number.
	for _, id := range []string{c1.ID, c2.ID} {
		if err := SetInviteContactStatus(ctx, db, id, domain.StatusSent); err != nil {
			t.Fatalf("SetInviteContactStatus: %v", err)
		}
	}

	got, err := LatestSentInviteContactByPhone(ctx, db, phone)
	if err != nil {
		t.Fatalf("LatestSentInviteContactByPhone: %v", err)
	}
	if got.ID != c2.ID || got.InviteID != newer.ID {
		t.Fatalf("reply must correlate to the newest delivered invite, got contact of invite %s", got.InviteID)
	}
}

func TestLatestSentInviteContactByPhone_IgnoresUndelivered(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()
	const phone = "+306900000000"

	inv, _ := CreateInvite(ctx, db, "Event", "m")
	if _, err := AddInviteContact(ctx, db, inv.ID, phone); err != nil {
		t.Fatalf("AddInviteContact: %v", err)
	}

	// Still pending: no delivered invitation exists for this phone.
	if _, err := LatestSentInviteContactByPhone(ctx, db, phone); err != ErrNotFound {
		t.Fatalf("want ErrNotFound for undelivered invite, got %v", err)
	}
}

func TestSetInviteContactResponse_RecordsAnswer(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()

	inv, _ := CreateInvite(ctx, db, "Event", "m")
	c, _ := AddInviteContact(ctx, db, inv.ID, "+301234567890")

	if err := SetInviteContactResponse(ctx, db, c.ID, "yes"); err != nil {
		t.Fatalf("SetInviteContactResponse: %v", err)
	}
	var got domain.InviteContact
	if err := db.First(&got, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("load contact: %v", err)
	}
	if got.Response != "yes" {
		t.Fatalf("want recorded response yes, got %q", got.Response)
	}

	if err := SetInviteContactResponse(ctx, db, "missing", "no"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound for missing contact, got %v", err)
	}
}

func TestCountInviteContactsNotSent_DrivesRollUp(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()

	inv, _ := CreateInvite(ctx, db, "Event", "m")
	c1, _ := AddInviteContact(ctx, db, inv.ID, "+301")
	c2, _ := AddInviteContact(ctx, db, inv.ID, "+302")

	n, err := CountInviteContactsNotSent(ctx, db, inv.ID)
	if err != nil || n != 2 {
		t.Fatalf("want 2 undelivered, got %d err=%v", n, err)
	}

	SetInviteContactStatus(ctx, db, c1.ID, domain.StatusSent)
	// Processing still counts as undelivered.
	SetInviteContactStatus(ctx, db, c2.ID, domain.StatusProcessing)

	n, err = CountInviteContactsNotSent(ctx, db, inv.ID)
	if err != nil || n != 1 {
		t.Fatalf("want 1 undelivered, got %d err=%v", n, err)
	}

	SetInviteContactStatus(ctx, db, c2.ID, domain.StatusSent)
	n, _ = CountInviteContactsNotSent(ctx, db, inv.ID)
	if n != 0 {
		t.Fatalf("want 0 undelivered after full delivery, got %d", n)
	}
}

func TestIncrementInviteContactAttempts(t *testing.T) {
	db := newRepoDB(t, &domain.Invite{}, &domain.InviteContact{})
	ctx := context.Background()

	inv, _ := CreateInvite(ctx, db, "Event", "m")
	c, _ := AddInviteContact(ctx, db, inv.ID, "+301")

	for i := 0; i < 3; i++ {
		if err := IncrementInviteContactAttempts(ctx, db, c.ID); err != nil {
			t.Fatalf("IncrementInviteContactAttempts: %v", err)
		}
	}
	var got domain.InviteContact
	db.First(&got, "id = ?", c.ID)
	if got.Attempts != 3 {
		t.Fatalf("want 3 attempts, got %d", got.Attempts)
	}
}
