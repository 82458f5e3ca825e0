package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

const (
	collectionRoleAssignments = "role_assignments"
	collectionDoctorProfiles  = "doctor_profiles"
	collectionPatientProfiles = "patient_profiles"
)

var errProfileExists = errors.New("profile already exists")

// ProfileStore keeps role assignments and profiles in one collection each,
// keyed by principal id.
type ProfileStore struct {
	roles    *mongo.Collection
	doctors  *mongo.Collection
	patients *mongo.Collection
}

var (
	_ ports.ProfileStore    = (*ProfileStore)(nil)
	_ ports.DoctorDirectory = (*ProfileStore)(nil)
)

func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{
		roles:    db.Collection(collectionRoleAssignments),
		doctors:  db.Collection(collectionDoctorProfiles),
		patients: db.Collection(collectionPatientProfiles),
	}
}

type roleDoc struct {
	PrincipalID string    `bson:"_id"`
	Role        string    `bson:"role"`
	CreatedAt   time.Time `bson:"created_at"`
}

type doctorDoc struct {
	PrincipalID     string     `bson:"_id"`
	FirstName       string     `bson:"first_name"`
	LastName        string     `bson:"last_name"`
	Phone           string     `bson:"phone"`
	Nationality     string     `bson:"nationality"`
	Specialties     []string   `bson:"specialties"`
	Bio             string     `bson:"bio,omitempty"`
	Website         string     `bson:"website,omitempty"`
	SocialMedia     string     `bson:"social_media,omitempty"`
	ProfileImageURL string     `bson:"profile_image_url,omitempty"`
	IsApproved      bool       `bson:"is_approved"`
	ApprovalStatus  string     `bson:"approval_status"`
	ReviewedBy      string     `bson:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `bson:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

type patientDoc struct {
	PrincipalID string    `bson:"_id"`
	Alias       string    `bson:"alias"`
	Bio         string    `bson:"bio,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d doctorDoc) toDomain() *domain.DoctorProfile {
	status := domain.ApprovalStatus(d.ApprovalStatus)
	if !status.Valid() {
		status = domain.ApprovalPending
	}
	return &domain.DoctorProfile{
		PrincipalID:     d.PrincipalID,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Phone:           d.Phone,
		Nationality:     d.Nationality,
		Specialties:     d.Specialties,
		Bio:             d.Bio,
		Website:         d.Website,
		SocialMedia:     d.SocialMedia,
		ProfileImageURL: d.ProfileImageURL,
		IsApproved:      d.IsApproved,
		ApprovalStatus:  status,
		ReviewedBy:      d.ReviewedBy,
		ReviewedAt:      d.ReviewedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func newDoctorDoc(p *domain.DoctorProfile) doctorDoc {
	status := p.ApprovalStatus
	if status == "" {
		status = domain.ApprovalPending
	}
	return doctorDoc{
		PrincipalID:     p.PrincipalID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Phone:           p.Phone,
		Nationality:     p.Nationality,
		Specialties:     p.Specialties,
		Bio:             p.Bio,
		Website:         p.Website,
		SocialMedia:     p.SocialMedia,
		ProfileImageURL: p.ProfileImageURL,
		IsApproved:      p.IsApproved,
		ApprovalStatus:  string(status),
		ReviewedBy:      p.ReviewedBy,
		ReviewedAt:      p.ReviewedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (s *ProfileStore) GetRoleAssignment(ctx context.Context, principalID string) (*domain.RoleAssignment, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc roleDoc
	if err := s.roles.FindOne(ctx, bson.M{"_id": principalID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find role assignment: %w", err)
	}
	return &domain.RoleAssignment{PrincipalID: doc.PrincipalID, Role: domain.Role(doc.Role), CreatedAt: doc.CreatedAt}, nil
}

func (s *ProfileStore) GetDoctorProfile(ctx context.Context, principalID string) (*domain.DoctorProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc doctorDoc
	if err := s.doctors.FindOne(ctx, bson.M{"_id": principalID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find doctor profile: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *ProfileStore) GetPatientProfile(ctx context.Context, principalID string) (*domain.PatientProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc patientDoc
	if err := s.patients.FindOne(ctx, bson.M{"_id": principalID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find patient profile: %w", err)
	}
	return &domain.PatientProfile{
		PrincipalID: doc.PrincipalID,
		Alias:       doc.Alias,
		Bio:         doc.Bio,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// InsertRoleAssignment writes the principal's only role. The principal id is
// the document id, so a second assignment fails with a duplicate key.
func (s *ProfileStore) InsertRoleAssignment(ctx context.Context, a domain.RoleAssignment) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if !a.Role.Valid() {
		return domain.ErrUnknownRole
	}
	doc := roleDoc{PrincipalID: a.PrincipalID, Role: string(a.Role), CreatedAt: a.CreatedAt}
	if _, err := s.roles.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRoleAlreadyAssigned
		}
		return fmt.Errorf("insert role assignment: %w", err)
	}
	return nil
}

func (s *ProfileStore) InsertProfile(ctx context.Context, p domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		col *mongo.Collection
		doc any
	)
	switch v := p.(type) {
	case *domain.DoctorProfile:
		col, doc = s.doctors, newDoctorDoc(v)
	case *domain.PatientProfile:
		col, doc = s.patients, patientDoc{
			PrincipalID: v.PrincipalID,
			Alias:       v.Alias,
			Bio:         v.Bio,
			CreatedAt:   v.CreatedAt,
			UpdatedAt:   v.UpdatedAt,
		}
	default:
		return fmt.Errorf("insert profile: %w", domain.ErrUnknownRole)
	}

	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errProfileExists
		}
		return fmt.Errorf("insert %s profile: %w", p.Role(), err)
	}
	return nil
}

// UpdateProfile applies the set fields of patch with $set.
func (s *ProfileStore) UpdateProfile(ctx context.Context, patch ports.ProfilePatch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set, ok := patchFields(patch)
	if !ok {
		return fmt.Errorf("update profile: %w", domain.ErrUnknownRole)
	}
	set["updated_at"] = time.Now().UTC()

	col := s.patients
	if patch.Role() == domain.RoleDoctor {
		col = s.doctors
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": patch.Owner()}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s profile: %w", patch.Role(), err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// patchFields maps the set fields of patch to their document keys.
func patchFields(patch ports.ProfilePatch) (bson.M, bool) {
	set := bson.M{}
	put := func(key string, v *string) {
		if v != nil {
			set[key] = *v
		}
	}
	switch p := patch.(type) {
	case ports.DoctorProfilePatch:
		put("first_name", p.FirstName)
		put("last_name", p.LastName)
		put("phone", p.Phone)
		put("nationality", p.Nationality)
		put("bio", p.Bio)
		put("website", p.Website)
		put("social_media", p.SocialMedia)
		put("profile_image_url", p.ProfileImageURL)
		if p.Specialties != nil {
			set["specialties"] = p.Specialties
		}
		return set, true
	case ports.PatientProfilePatch:
		put("alias", p.Alias)
		put("bio", p.Bio)
		return set, true
	}
	return nil, false
}

// ListDoctorProfiles returns one page of doctors, newest first, and the
// total number of matches.
func (s *ProfileStore) ListDoctorProfiles(ctx context.Context, f ports.DoctorFilter) ([]*domain.DoctorProfile, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Status != "" {
		filter["approval_status"] = string(f.Status)
	}

	total, err := s.doctors.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctor profiles: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	cur, err := s.doctors.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctor profiles: %w", err)
	}
	defer cur.Close(ctx)

	var docs []doctorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode doctor profiles: %w", err)
	}
	out := make([]*domain.DoctorProfile, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, total, nil
}

// SetDoctorApproval records a review decision and keeps is_approved in step
// with the status.
func (s *ProfileStore) SetDoctorApproval(ctx context.Context, principalID string, status domain.ApprovalStatus, reviewer string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	res, err := s.doctors.UpdateOne(ctx, bson.M{"_id": principalID}, bson.M{"$set": bson.M{
		"approval_status": string(status),
		"is_approved":     status == domain.ApprovalApproved,
		"reviewed_by":     reviewer,
		"reviewed_at":     now,
		"updated_at":      now,
	}})
	if err != nil {
		return fmt.Errorf("set doctor approval: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// EnsureIndexes creates the index used by the review listing.
func (s *ProfileStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.doctors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "approval_status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
