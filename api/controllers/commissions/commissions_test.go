package commissions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	internalcommissions "github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/auth"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
)

type stubCommissions struct {
	listPartner uuid.UUID
	listParams  pagination.Params
	approved    []uuid.UUID
	actor       *outbox.ActorRef
	payErr      error
	recomputed  uuid.UUID
}

func (s *stubCommissions) ListByPartner(_ context.Context, partnerID uuid.UUID, params pagination.Params) (*internalcommissions.CommissionList, error) {
	s.listPartner = partnerID
	s.listParams = params
	return &internalcommissions.CommissionList{Commissions: []internalcommissions.CommissionDTO{{PartnerID: partnerID, CommissionCents: 700}}}, nil
}

func (s *stubCommissions) PartnerSummary(_ context.Context, partnerID uuid.UUID) (*internalcommissions.Summary, error) {
	return &internalcommissions.Summary{
		PartnerID:        partnerID,
		Pending:          internalcommissions.Bucket{Count: 1, CommissionCents: 700},
		OutstandingCents: 700,
	}, nil
}

func (s *stubCommissions) Approve(_ context.Context, id uuid.UUID, actor *outbox.ActorRef) (*internalcommissions.CommissionDTO, error) {
	s.approved = append(s.approved, id)
	s.actor = actor
	return &internalcommissions.CommissionDTO{ID: id, Status: enums.CommissionStatusApproved}, nil
}

func (s *stubCommissions) MarkPaid(_ context.Context, id uuid.UUID, _ *outbox.ActorRef) (*internalcommissions.CommissionDTO, error) {
	if s.payErr != nil {
		return nil, s.payErr
	}
	return &internalcommissions.CommissionDTO{ID: id, Status: enums.CommissionStatusPaid}, nil
}

func (s *stubCommissions) RecomputePending(_ context.Context, partnerID uuid.UUID) (int, error) {
	s.recomputed = partnerID
	return 3, nil
}

type partnerDirectory map[uuid.UUID]uuid.UUID

func (d partnerDirectory) FindByUserID(_ context.Context, userID uuid.UUID) (*models.Partner, error) {
	id, ok := d[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Partner{ID: id, UserID: userID}, nil
}

func serve(t *testing.T, method, pattern, target string, identity auth.Identity, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Method(method, pattern, handler)
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPartnerListResolvesCallerPartner(t *testing.T) {
	user, partner := uuid.New(), uuid.New()
	svc := &stubCommissions{}
	identity := auth.Identity{UserID: user, Role: enums.RolePartner}

	rec := serve(t, http.MethodGet, "/commissions", "/commissions?limit=5", identity, List(svc, partnerDirectory{user: partner}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, partner, svc.listPartner)
	assert.Equal(t, 5, svc.listParams.Limit)

	rec = serve(t, http.MethodGet, "/commissions", "/commissions", auth.Identity{UserID: uuid.New(), Role: enums.RolePartner}, List(svc, partnerDirectory{}, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPartnerSummary(t *testing.T) {
	user, partner := uuid.New(), uuid.New()
	rec := serve(t, http.MethodGet, "/commissions/summary", "/commissions/summary",
		auth.Identity{UserID: user, Role: enums.RolePartner}, Summary(&stubCommissions{}, partnerDirectory{user: partner}, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data internalcommissions.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, partner, env.Data.PartnerID)
	assert.Equal(t, int64(700), env.Data.OutstandingCents)
}

func TestAdminApproveCarriesActor(t *testing.T) {
	svc := &stubCommissions{}
	admin := auth.Identity{UserID: uuid.New(), Role: enums.RoleAdmin}
	id := uuid.New()

	rec := serve(t, http.MethodPost, "/commissions/{commissionId}/approve", "/commissions/"+id.String()+"/approve", admin, Approve(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []uuid.UUID{id}, svc.approved)
	require.NotNil(t, svc.actor)
	assert.Equal(t, admin.UserID, svc.actor.UserID)
	assert.Equal(t, enums.RoleAdmin, svc.actor.Role)

	rec = serve(t, http.MethodPost, "/commissions/{commissionId}/approve", "/commissions/nope/approve", admin, Approve(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPaySurfacesIllegalTransition(t *testing.T) {
	svc := &stubCommissions{payErr: pkgerrors.Domain(pkgerrors.ReasonIllegalTransition, "commission cannot move from pending to paid")}
	rec := serve(t, http.MethodPost, "/commissions/{commissionId}/pay", "/commissions/"+uuid.NewString()+"/pay",
		auth.Identity{UserID: uuid.New(), Role: enums.RoleAdmin}, Pay(svc, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pkgerrors.ReasonIllegalTransition))
}

func TestRecompute(t *testing.T) {
	svc := &stubCommissions{}
	partner := uuid.New()
	rec := serve(t, http.MethodPost, "/partners/{partnerId}/commissions/recompute", "/partners/"+partner.String()+"/commissions/recompute",
		auth.Identity{UserID: uuid.New(), Role: enums.RoleAdmin}, Recompute(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, partner, svc.recomputed)
	assert.Contains(t, rec.Body.String(), `"updated":3`)
}
