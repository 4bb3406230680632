package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/models"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
)

func finishRequest() *FinishCourseRequest {
	result := 87.5
	return &FinishCourseRequest{ExamResult: &result, ConclusionDate: "2024-06-30"}
}

// fixedCodes hands out fixed validation codes in order
func fixedCodes(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		v := values[i]
		i++
		return v, nil
	}
}

func TestCertificateService_FinishCourseIssuesCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana Souza"), course)

	svc := f.certificates()
	svc.newCode = fixedCodes("ABCD1234EFGH")

	resp, err := svc.FinishCourse(ctx, registration.ID, finishRequest())
	require.NoError(t, err)

	assert.Equal(t, "ABCD1234EFGH", resp.Code)
	assert.Equal(t, "https://certs.example.com/ABCD1234EFGH", resp.Link)
	assert.Equal(t, models.DegreeIssued, resp.Status)
	assert.Equal(t, "2024-06-30", resp.ConclusionDate)

	obj, ok := f.blobs.Object("ABCD1234EFGH")
	require.True(t, ok)
	assert.Equal(t, certificate.ContentType, obj.ContentType)
	assert.Equal(t, "%PDF-1.3 ABCD1234EFGH", string(obj.Data))

	require.Len(t, f.renderer.docs, 1)
	assert.Equal(t, "Ana Souza", f.renderer.docs[0].StudentName)
	assert.Equal(t, course.Name, f.renderer.docs[0].CourseName)

	stored, err := f.repo.Registration().GetByID(ctx, nil, registration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DegreeIssued, stored.DegreeStatus)
	assert.Nil(t, stored.PendingDegreeCode)
	require.NotNil(t, stored.DegreeLink)
	assert.Contains(t, *stored.DegreeLink, "ABCD1234EFGH")
	require.NotNil(t, stored.ExamResult)
	assert.Equal(t, 87.5, *stored.ExamResult)
	require.NotNil(t, stored.ConclusionDate)
	assert.Equal(t, date("2024-06-30"), *stored.ConclusionDate)

	var issued []events.PublishedEvent
	for _, e := range f.publisher.GetPublishedEvents() {
		if e.Topic == events.TopicCertificateIssued {
			issued = append(issued, e)
		}
	}
	require.Len(t, issued, 1)
	assert.Equal(t, "ABCD1234EFGH", issued[0].Payload.(events.CertificateIssuedEvent).Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CertificatesIssued))

	verified, err := svc.VerifyCertificate(ctx, "ABCD1234EFGH")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", verified.StudentName)
	assert.Equal(t, course.Duration, verified.Duration)
	assert.Equal(t, "2024-06-30", verified.ConclusionDate)
}

func TestCertificateService_UnknownRegistrationTouchesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.certificates().FinishCourse(context.Background(), "missing", finishRequest())

	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	assert.Equal(t, 0, f.templates.calls)
	assert.Equal(t, 0, f.blobs.PutCalls())
}

func TestCertificateService_TemplateUnavailable(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	f.templates.err = ErrTemplateUnavailable

	_, err := f.certificates().FinishCourse(context.Background(), registration.ID, finishRequest())

	assert.ErrorIs(t, err, ErrTemplateUnavailable)
	assert.Equal(t, 0, f.blobs.PutCalls())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CertificateFailures.WithLabelValues("template")))

	stored, err := f.repo.Registration().GetByID(context.Background(), nil, registration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DegreeNone, stored.DegreeStatus)
}

func TestCertificateService_UnreadableTemplateIsTemplateFailure(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	f.renderer.err = fmt.Errorf("%w: template is not a PDF, PNG or JPEG", certificate.ErrTemplateUnavailable)

	_, err := f.certificates().FinishCourse(context.Background(), registration.ID, finishRequest())

	assert.ErrorIs(t, err, ErrTemplateUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CertificateFailures.WithLabelValues("template")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.CertificateFailures.WithLabelValues("render")))
	assert.Equal(t, 0, f.blobs.PutCalls())
}

func TestCertificateService_UploadFailureClearsPending(t *testing.T) {
	f := newFixture(t)
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)
	f.blobs.PutErr = errors.New("bucket unreachable")

	_, err := f.certificates().FinishCourse(context.Background(), registration.ID, finishRequest())
	require.Error(t, err)

	stored, err := f.repo.Registration().GetByID(context.Background(), nil, registration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DegreeNone, stored.DegreeStatus)
	assert.Nil(t, stored.PendingDegreeCode)
	assert.Nil(t, stored.DegreeLink)
	assert.Nil(t, stored.ExamResult)
	assert.Equal(t, 0, f.blobs.Len())
}

func TestCertificateService_ValidatesRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.certificates().FinishCourse(context.Background(), "any", &FinishCourseRequest{ConclusionDate: "30/06/2024"})

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, 0, f.templates.calls)
}

func TestCertificateService_RefinishReplacesDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)

	svc := f.certificates()
	svc.newCode = fixedCodes("FIRST0000001", "SECOND000002")

	_, err := svc.FinishCourse(ctx, registration.ID, finishRequest())
	require.NoError(t, err)
	second, err := svc.FinishCourse(ctx, registration.ID, finishRequest())
	require.NoError(t, err)

	assert.Equal(t, "SECOND000002", second.Code)
	_, ok := f.blobs.Object("FIRST0000001")
	assert.False(t, ok)
	assert.Equal(t, 1, f.blobs.Len())

	_, err = svc.VerifyCertificate(ctx, "FIRST0000001")
	assert.ErrorIs(t, err, ErrCertificateNotFound)
}

// hookedStore moves the pending code on after a successful Put, the way a
// concurrent finish of the same registration would.
type hookedStore struct {
	*storage.MemoryStore
	afterPut func()
}

func (s *hookedStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	link, err := s.MemoryStore.Put(ctx, key, r, contentType)
	if err == nil {
		s.afterPut()
	}
	return link, err
}

func TestCertificateService_SupersededIssueDeletesBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)

	svc := f.certificates()
	svc.newCode = fixedCodes("LOSER0000001")
	svc.blobs = &hookedStore{
		MemoryStore: f.blobs,
		afterPut: func() {
			require.NoError(t, f.db.Model(&models.Registration{}).
				Where("id = ?", registration.ID).
				Update("pending_degree_code", "WINNER000001").Error)
		},
	}

	_, err := svc.FinishCourse(ctx, registration.ID, finishRequest())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "superseded"))

	_, ok := f.blobs.Object("LOSER0000001")
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CertificateFailures.WithLabelValues("issue")))

	stored, err := f.repo.Registration().GetByID(ctx, nil, registration.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.DegreeIssued, stored.DegreeStatus)
	assert.Nil(t, stored.DegreeCode)
}

func TestCertificateService_StaleReservationIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := f.seedCourse(t, 1)
	registration := f.register(t, f.seedStudent(t, "Ana"), course)

	// a finish that stored its document and died before issuing
	_, err := f.blobs.Put(ctx, "CRASHED00001", strings.NewReader("%PDF-1.3"), certificate.ContentType)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Registration{}).
		Where("id = ?", registration.ID).
		Updates(map[string]interface{}{"pending_degree_code": "CRASHED00001", "degree_status": models.DegreePending}).Error)

	svc := f.certificates()
	svc.newCode = fixedCodes("FRESH0000001")
	resp, err := svc.FinishCourse(ctx, registration.ID, finishRequest())
	require.NoError(t, err)
	assert.Equal(t, "FRESH0000001", resp.Code)

	_, ok := f.blobs.Object("CRASHED00001")
	assert.False(t, ok)
	assert.Equal(t, 1, f.blobs.Len())

	stored, err := f.repo.Registration().GetByID(ctx, nil, registration.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PendingDegreeCode)
	require.NotNil(t, stored.DegreeCode)
	assert.Equal(t, "FRESH0000001", *stored.DegreeCode)
}

func TestRegistrationRepository_MarkDegreePendingReportsReplacedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registration := f.register(t, f.seedStudent(t, "Ana"), f.seedCourse(t, 0))
	repo := f.repo.Registration()

	stale, err := repo.MarkDegreePending(ctx, nil, registration.ID, "FIRST0000001")
	require.NoError(t, err)
	assert.Nil(t, stale)

	stale, err = repo.MarkDegreePending(ctx, nil, registration.ID, "SECOND000002")
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Equal(t, "FIRST0000001", *stale)

	_, err = repo.MarkDegreePending(ctx, nil, "missing", "THIRD0000003")
	assert.ErrorIs(t, err, ErrNotFound)
}
