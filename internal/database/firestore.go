package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// Collection names shared with the web client.
const (
	UsersCollection       = "users"
	CompaniesCollection   = "companies"
	SubmissionsCollection = "ewasteRequests"
)

// Firestore is the production Store. Documents are written as plain maps so
// the field names stay compatible with existing client data.
type Firestore struct {
	client *firestore.Client
}

var _ Store = (*Firestore)(nil)

// OpenFirestore connects to the named Firestore database. An empty
// credentialsFile falls back to application default credentials; the
// FIRESTORE_EMULATOR_HOST variable is honoured by the client library.
func OpenFirestore(ctx context.Context, projectID, databaseID, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// NewFirestore wraps an existing client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

// Close releases the underlying client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

func isCode(err error, c codes.Code) bool {
	return err != nil && status.Code(err) == c
}

// --- Profiles ---

func (f *Firestore) PutUserProfile(ctx context.Context, p *models.UserProfile) error {
	data := map[string]interface{}{
		"username":  p.Username,
		"mobile":    p.Mobile,
		"email":     p.Email,
		"userType":  string(p.UserType),
		"createdAt": p.CreatedAt,
	}
	_, err := f.client.Collection(UsersCollection).Doc(p.ID).Set(ctx, data, firestore.MergeAll)
	return err
}

func (f *Firestore) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	snap, err := f.client.Collection(UsersCollection).Doc(id).Get(ctx)
	if isCode(err, codes.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := snap.Data()
	return &models.UserProfile{
		ID:        snap.Ref.ID,
		Username:  asString(d["username"]),
		Mobile:    asString(d["mobile"]),
		Email:     asString(d["email"]),
		EcoPoints: asInt(d["ecoPoints"]),
		UserType:  models.Role(asString(d["userType"])),
		CreatedAt: asTime(d["createdAt"]),
	}, nil
}

// AddEcoPoints uses a server-side increment with merge so the document is
// created when absent and concurrent awards are never lost.
func (f *Firestore) AddEcoPoints(ctx context.Context, userID string, delta int64) error {
	data := map[string]interface{}{"ecoPoints": firestore.Increment(delta)}
	_, err := f.client.Collection(UsersCollection).Doc(userID).Set(ctx, data, firestore.MergeAll)
	return err
}

func (f *Firestore) PutCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	data := map[string]interface{}{
		"companyName": p.CompanyName,
		"phone":       p.Phone,
		"email":       p.Email,
		"certificate": p.Certificate,
		"userType":    string(p.UserType),
		"createdAt":   p.CreatedAt,
	}
	_, err := f.client.Collection(CompaniesCollection).Doc(p.ID).Set(ctx, data, firestore.MergeAll)
	return err
}

func (f *Firestore) GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error) {
	snap, err := f.client.Collection(CompaniesCollection).Doc(id).Get(ctx)
	if isCode(err, codes.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := companyFromSnap(snap)
	return &c, nil
}

func (f *Firestore) ListCompanyProfiles(ctx context.Context) ([]models.CompanyProfile, error) {
	iter := f.client.Collection(CompaniesCollection).Documents(ctx)
	defer iter.Stop()

	var companies []models.CompanyProfile
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		companies = append(companies, companyFromSnap(snap))
	}
	sortCompanies(companies)
	return companies, nil
}

func (f *Firestore) UpdateCompanyProfile(ctx context.Context, id string, u models.CompanyUpdate) error {
	var updates []firestore.Update
	if u.CompanyName != nil {
		updates = append(updates, firestore.Update{Path: "companyName", Value: *u.CompanyName})
	}
	if u.Phone != nil {
		updates = append(updates, firestore.Update{Path: "phone", Value: *u.Phone})
	}
	if u.Certificate != nil {
		updates = append(updates, firestore.Update{Path: "certificate", Value: *u.Certificate})
	}

	ref := f.client.Collection(CompaniesCollection).Doc(id)
	if len(updates) == 0 {
		// Nothing to write, but still report unknown companies.
		if _, err := ref.Get(ctx); err != nil {
			if isCode(err, codes.NotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	}

	_, err := ref.Update(ctx, updates)
	if isCode(err, codes.NotFound) {
		return ErrNotFound
	}
	return err
}

func companyFromSnap(snap *firestore.DocumentSnapshot) models.CompanyProfile {
	d := snap.Data()
	return models.CompanyProfile{
		ID:          snap.Ref.ID,
		CompanyName: asString(d["companyName"]),
		Phone:       asString(d["phone"]),
		Email:       asString(d["email"]),
		Certificate: asString(d["certificate"]),
		UserType:    models.Role(asString(d["userType"])),
		CreatedAt:   asTime(d["createdAt"]),
	}
}

// --- Submissions ---

func (f *Firestore) CreateSubmission(ctx context.Context, s *models.Submission) error {
	col := f.client.Collection(SubmissionsCollection)
	var ref *firestore.DocumentRef
	if s.ID == "" {
		ref = col.NewDoc()
	} else {
		ref = col.Doc(s.ID)
	}

	data := map[string]interface{}{
		"userId":    s.UserID,
		"userName":  s.UserName,
		"userEmail": s.UserEmail,
		"name":      s.ItemName,
		"quantity":  s.Quantity,
		"weight":    s.Weight,
		"companyId": s.CompanyID,
		"imageUrl":  s.ImageRef,
		"phone":     s.Phone,
		"address":   s.Address,
		"prize":     s.Prize,
		"status":    string(s.Status),
		"createdAt": s.CreatedAt,
	}
	if _, err := ref.Create(ctx, data); err != nil {
		if isCode(err, codes.AlreadyExists) {
			return ErrDuplicate
		}
		return err
	}
	s.ID = ref.ID
	return nil
}

func (f *Firestore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	snap, err := f.client.Collection(SubmissionsCollection).Doc(id).Get(ctx)
	if isCode(err, codes.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := submissionFromSnap(snap)
	return &s, nil
}

// SubmissionsByCompany sorts in memory rather than with OrderBy so the query
// needs no composite index.
func (f *Firestore) SubmissionsByCompany(ctx context.Context, companyID string) ([]models.Submission, error) {
	return f.querySubmissions(ctx, f.client.Collection(SubmissionsCollection).Where("companyId", "==", companyID))
}

func (f *Firestore) SubmissionsByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	return f.querySubmissions(ctx, f.client.Collection(SubmissionsCollection).Where("userId", "==", userID))
}

func (f *Firestore) SetSubmissionStatus(ctx context.Context, id string, st models.Status) error {
	_, err := f.client.Collection(SubmissionsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
	})
	if isCode(err, codes.NotFound) {
		return ErrNotFound
	}
	return err
}

func (f *Firestore) querySubmissions(ctx context.Context, q firestore.Query) ([]models.Submission, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var subs []models.Submission
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, submissionFromSnap(snap))
	}
	newestFirst(subs)
	return subs, nil
}

func submissionFromSnap(snap *firestore.DocumentSnapshot) models.Submission {
	return submissionFromMap(snap.Ref.ID, snap.Data())
}

// submissionFromMap decodes leniently: older documents written by the web
// client store quantity and weight as strings, and may lack fields.
func submissionFromMap(id string, d map[string]interface{}) models.Submission {
	st := models.Status(asString(d["status"]))
	if st == "" {
		st = models.StatusPending
	}
	return models.Submission{
		ID:        id,
		UserID:    asString(d["userId"]),
		UserName:  asString(d["userName"]),
		UserEmail: asString(d["userEmail"]),
		ItemName:  asString(d["name"]),
		Quantity:  int(asInt(d["quantity"])),
		Weight:    asFloat(d["weight"]),
		CompanyID: asString(d["companyId"]),
		ImageRef:  asString(d["imageUrl"]),
		Phone:     asString(d["phone"]),
		Address:   asString(d["address"]),
		Prize:     int(asInt(d["prize"])),
		Status:    st,
		CreatedAt: asTime(d["createdAt"]),
	}
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// asFloat coerces numeric or numeric-string values. Anything else,
// including NaN and infinities, is 0.
func asFloat(v interface{}) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// asInt is asFloat truncated toward zero; values outside the int64 range
// are 0.
func asInt(v interface{}) int64 {
	if x, ok := v.(int64); ok {
		return x
	}
	f := math.Trunc(asFloat(v))
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func asTime(v interface{}) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
