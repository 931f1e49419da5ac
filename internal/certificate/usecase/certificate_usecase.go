package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	authrepo "certhub-backend/internal/auth/repository"
	certdomain "certhub-backend/internal/certificate/domain"
	certdto "certhub-backend/internal/certificate/dto"
	certrepo "certhub-backend/internal/certificate/repository"
	"certhub-backend/pkg/apperr"
	"certhub-backend/pkg/fuzzy"
)

const (
	recentWindow       = 30 * 24 * time.Hour
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type certificateUsecase struct {
	userRepo authrepo.UserRepository
	certRepo certrepo.CertificateRepository
	indexer  CertificateIndex
	now      func() time.Time
}

// NewCertificateUsecase creates a new instance of certificateUsecase
func NewCertificateUsecase(userRepo authrepo.UserRepository, certRepo certrepo.CertificateRepository) CertificateUsecase {
	return &certificateUsecase{
		userRepo: userRepo,
		certRepo: certRepo,
		now:      time.Now,
	}
}

func (u *certificateUsecase) SetIndexer(indexer CertificateIndex) {
	u.indexer = indexer
}

func (u *certificateUsecase) findUser(email string) (*authdomain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.ErrEmailRequired
	}
	user, err := u.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}
	return user, nil
}

// GetCertificates lists the user's certificates newest first. The platform
// summary and total always cover the whole collection; filters only narrow
// the returned list. A q filter reorders by relevance.
func (u *certificateUsecase) GetCertificates(email string, filter certdto.CertificateFilter) (*certdto.CertificatesResponse, error) {
	user, err := u.findUser(email)
	if err != nil {
		return nil, err
	}
	all, err := u.certRepo.FindByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	summary := make(map[string]int)
	for _, c := range all {
		summary[c.Platform]++
	}

	return &certdto.CertificatesResponse{
		Success: true,
		User: certdto.UserSummary{
			Email:             user.Email,
			TotalCertificates: len(all),
		},
		PlatformSummary: summary,
		Certificates:    applyFilter(all, filter),
	}, nil
}

func applyFilter(certs []*certdomain.Certificate, filter certdto.CertificateFilter) []*certdomain.Certificate {
	platform := strings.TrimSpace(filter.Platform)
	skill := strings.TrimSpace(filter.Skill)
	query := strings.TrimSpace(filter.Query)

	out := make([]*certdomain.Certificate, 0, len(certs))
	for _, c := range certs {
		if platform != "" && !strings.EqualFold(c.Platform, platform) {
			continue
		}
		if skill != "" && !c.HasSkill(skill) {
			continue
		}
		if query != "" && !fuzzy.MatchCertificate(query, c.CourseName, c.Platform, c.Skills) {
			continue
		}
		out = append(out, c)
	}

	if query != "" {
		scores := make(map[string]float64, len(out))
		for _, c := range out {
			scores[c.ID] = fuzzy.RelevanceScore(query, c.CourseName, c.Platform, c.Skills)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return scores[out[i].ID] > scores[out[j].ID]
		})
	}
	return out
}

func (u *certificateUsecase) GetStats(email string) (*certdto.StatsResponse, error) {
	user, err := u.findUser(email)
	if err != nil {
		return nil, err
	}
	certs, err := u.certRepo.FindByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	return &certdto.StatsResponse{
		Success:   true,
		UserEmail: user.Email,
		Stats:     computeStats(certs, u.now()),
	}, nil
}

func computeStats(certs []*certdomain.Certificate, now time.Time) certdto.Stats {
	stats := certdto.Stats{
		TotalCertificates: len(certs),
		Platforms:         make(map[string]int),
		SkillsSummary:     make(map[string]int),
	}
	cutoff := now.Add(-recentWindow)

	var latest *certdomain.Certificate
	for _, c := range certs {
		stats.Platforms[c.Platform]++
		if !c.IssueDate.Before(cutoff) {
			stats.RecentCertificates++
		}
		for _, s := range c.SkillList() {
			stats.SkillsSummary[s]++
		}
		if latest == nil || c.IssueDate.After(latest.IssueDate) {
			latest = c
		}
	}

	if latest != nil {
		stats.LatestCertificate = &certdto.LatestCertificate{
			Platform:   latest.Platform,
			CourseName: latest.CourseName,
			IssueDate:  latest.IssueDate,
		}
	}
	return stats
}

// SemanticSearch queries the vector index, which only ever returns the
// caller's own certificates.
func (u *certificateUsecase) SemanticSearch(ctx context.Context, email, query string, limit int) (*certdto.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.ErrQueryRequired
	}
	if u.indexer == nil {
		return nil, apperr.ErrSearchUnavailable
	}
	user, err := u.findUser(email)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	ids, distances, err := u.indexer.Search(ctx, user.ID, query, limit)
	if err != nil {
		log.Printf("[Search] Semantic search failed for %s: %v", user.Email, err)
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	distanceByID := make(map[string]float64, len(ids))
	for i, id := range ids {
		if i < len(distances) {
			distanceByID[id] = distances[i]
		}
	}

	certs, err := u.certRepo.FindByIDs(user.ID, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]certdto.SearchHit, 0, len(certs))
	for _, c := range certs {
		hits = append(hits, certdto.SearchHit{Certificate: c, Distance: distanceByID[c.ID]})
	}
	return &certdto.SearchResponse{Success: true, Query: query, Results: hits}, nil
}
