package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	errs   []error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestEmailSender_Send(t *testing.T) {
	ses := &fakeSES{errs: []error{errors.New("throttled")}}
	s := NewEmailSenderWithClient(ses, EmailConfig{
		From:       "alerts@example.com",
		FromName:   "Checkin",
		Recipients: map[string]string{"g1": "parent@example.com"},
	}, fastRetry())

	err := s.Send(context.Background(), Message{GuardianID: "g1", Title: "Device Locked", Body: "locked"})
	require.NoError(t, err)

	require.Len(t, ses.inputs, 2)
	in := ses.inputs[1]
	assert.Equal(t, "Checkin <alerts@example.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"parent@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Device Locked", *in.Content.Simple.Subject.Data)
	assert.Equal(t, "locked", *in.Content.Simple.Body.Text.Data)
}

func TestEmailSender_NoRecipient(t *testing.T) {
	ses := &fakeSES{}
	s := NewEmailSenderWithClient(ses, EmailConfig{From: "alerts@example.com"}, fastRetry())

	err := s.Send(context.Background(), Message{GuardianID: "g9"})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, ses.inputs)
}
