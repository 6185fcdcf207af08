package newsletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/database/dbtest"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/modules/syndication/newsletter/mocks"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
)

type NewsletterTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	mailer     *mocks.MockMailer
	recipients *mocks.MockRecipients
	db         *gorm.DB
	svc        *Service
	now        time.Time
}

func (s *NewsletterTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mailer = mocks.NewMockMailer(s.ctrl)
	s.recipients = mocks.NewMockRecipients(s.ctrl)
	s.db = dbtest.Open(s.T())
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc = NewService(s.db, s.mailer, s.recipients, Options{
		SiteURL:  "https://blog.example.com/",
		SiteName: "Example",
		Now:      func() time.Time { return s.now },
	})
}

func TestNewsletterTestSuite(t *testing.T) {
	suite.Run(t, new(NewsletterTestSuite))
}

func (s *NewsletterTestSuite) entry(uid string) models.NewsletterQueueModel {
	var row models.NewsletterQueueModel
	s.Require().NoError(s.db.Where("article_uid = ?", uid).First(&row).Error)
	return row
}

func (s *NewsletterTestSuite) enqueue(uid string) {
	queued, err := s.svc.Enqueue(context.Background(), EnqueueInput{
		UID:     uid,
		Path:    "tutorials/" + uid + ".mdx",
		Title:   "Title " + uid,
		Summary: "A **bold** start",
		Tags:    []string{"go"},
	})
	s.Require().NoError(err)
	s.Require().True(queued)
}

func (s *NewsletterTestSuite) TestEnqueue_IsIdempotent() {
	s.enqueue("u1")

	queued, err := s.svc.Enqueue(context.Background(), EnqueueInput{UID: "u1", Path: "other", Title: "changed"})
	s.Require().NoError(err)
	s.False(queued)
	s.Equal("Title u1", s.entry("u1").Title)

	_, err = s.svc.Enqueue(context.Background(), EnqueueInput{})
	s.Error(err)
}

func (s *NewsletterTestSuite) TestSendPending_MailsEverySubscriber() {
	s.enqueue("u1")
	subs := []models.SubscriberModel{
		{Email: "a@example.com", Token: "tok-a"},
		{Email: "b@example.com", Token: "tok-b"},
	}
	s.recipients.EXPECT().Active(gomock.Any()).Return(subs, nil)

	var got []mail.Message
	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg mail.Message) error {
			got = append(got, msg)
			return nil
		}).Times(2)

	sent, err := s.svc.SendPending(context.Background())
	s.Require().NoError(err)
	s.Equal(1, sent)

	s.Require().Len(got, 2)
	s.Equal([]string{"a@example.com"}, got[0].To)
	s.Equal("Title u1", got[0].Subject)
	s.Contains(got[0].HTML, "<strong>bold</strong>")
	s.Contains(got[0].HTML, "https://blog.example.com/tutorials/u1")
	s.Contains(got[0].HTML, "token=tok-a")
	s.Contains(got[1].Text, "token=tok-b")

	row := s.entry("u1")
	s.Equal(models.NewsletterSent, row.Status)
	s.Equal(1, row.Attempts)
	s.Require().NotNil(row.SentAt)
	s.True(row.SentAt.Equal(s.now))
}

func (s *NewsletterTestSuite) TestSendPending_KeepsEntryPendingOnFailure() {
	s.enqueue("u1")
	s.recipients.EXPECT().Active(gomock.Any()).
		Return([]models.SubscriberModel{{Email: "a@example.com", Token: "t"}}, nil)
	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("mail api status 500"))

	sent, err := s.svc.SendPending(context.Background())
	s.Error(err)
	s.Zero(sent)

	row := s.entry("u1")
	s.Equal(models.NewsletterPending, row.Status)
	s.Equal(1, row.Attempts)
	s.Contains(row.LastError, "status 500")
	s.Nil(row.SentAt)
}

func (s *NewsletterTestSuite) TestSendPending_RetriesOnlyUndelivered_And_GivesUpAfterMaxAttempts() {
	s.svc = NewService(s.db, s.mailer, s.recipients, Options{
		SiteURL:     "https://blog.example.com",
		MaxAttempts: 3,
		Now:         func() time.Time { return s.now },
	})
	s.enqueue("u1")
	subs := []models.SubscriberModel{
		{Email: "a@example.com", Token: "tok-a"},
		{Email: "B@example.com", Token: "tok-b"},
	}
	s.recipients.EXPECT().Active(gomock.Any()).Return(subs, nil).Times(3)

	perRecipient := map[string]int{}
	s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg mail.Message) error {
			perRecipient[msg.To[0]]++
			if msg.To[0] == "B@example.com" {
				return errors.New("mailbox unavailable")
			}
			return nil
		}).AnyTimes()

	for run := 1; run <= 3; run++ {
		sent, err := s.svc.SendPending(context.Background())
		s.Error(err)
		s.Zero(sent)
		s.Equal(run, s.entry("u1").Attempts)
	}

	row := s.entry("u1")
	s.Equal(models.NewsletterFailed, row.Status)
	s.Contains(row.LastError, "mailbox unavailable")
	s.Nil(row.SentAt)
	s.Equal(1, perRecipient["a@example.com"])
	s.Equal(3, perRecipient["B@example.com"])

	var delivered []string
	s.Require().NoError(s.db.Model(&models.NewsletterDeliveryModel{}).Pluck("email", &delivered).Error)
	s.Equal([]string{"a@example.com"}, delivered)

	// A failed entry is no longer picked up.
	sent, err := s.svc.SendPending(context.Background())
	s.Require().NoError(err)
	s.Zero(sent)
	s.Equal(3, perRecipient["B@example.com"])
}

func (s *NewsletterTestSuite) TestSendPending_FinishesEntry_When_RetrySucceeds() {
	s.enqueue("u1")
	subs := []models.SubscriberModel{
		{Email: "a@example.com", Token: "tok-a"},
		{Email: "b@example.com", Token: "tok-b"},
	}
	s.recipients.EXPECT().Active(gomock.Any()).Return(subs, nil).Times(2)

	gomock.InOrder(
		s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
		s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
		s.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msg mail.Message) error {
				s.Equal([]string{"b@example.com"}, msg.To)
				return nil
			}),
	)

	_, err := s.svc.SendPending(context.Background())
	s.Error(err)
	s.Equal(models.NewsletterPending, s.entry("u1").Status)

	sent, err := s.svc.SendPending(context.Background())
	s.Require().NoError(err)
	s.Equal(1, sent)
	row := s.entry("u1")
	s.Equal(models.NewsletterSent, row.Status)
	s.Equal(2, row.Attempts)
	s.Empty(row.LastError)
}

func (s *NewsletterTestSuite) TestSendPending_WithoutSubscribersMarksSent() {
	s.enqueue("u1")
	s.recipients.EXPECT().Active(gomock.Any()).Return(nil, nil)

	sent, err := s.svc.SendPending(context.Background())
	s.Require().NoError(err)
	s.Equal(1, sent)
	s.Equal(models.NewsletterSent, s.entry("u1").Status)
}

func (s *NewsletterTestSuite) TestSendPending_EmptyQueueSkipsRecipients() {
	sent, err := s.svc.SendPending(context.Background())
	s.Require().NoError(err)
	s.Zero(sent)
}

func (s *NewsletterTestSuite) TestJob_DrainsQueue() {
	s.enqueue("u1")
	s.recipients.EXPECT().Active(gomock.Any()).Return(nil, nil)

	job := s.svc.Job(time.Minute)
	s.Equal(JobName, job.Name)
	s.Require().NoError(job.Fn(context.Background()))
	s.Equal(models.NewsletterSent, s.entry("u1").Status)
}
