package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
)

// SignObserver is notified after every successful SignDocument. Deciding
// when a document as a whole becomes signed belongs to the observer; the
// tracker only records per-signer decisions.
type SignObserver interface {
	DocumentSigned(ctx context.Context, doc *models.Document, signing *models.SigningStatus)
}

// SetSignObserver installs o. A nil observer disables notifications.
func (s *Service) SetSignObserver(o SignObserver) {
	s.observer = o
}

// SignDocument records that signerID signed the document. The signing row
// is created on first use and set to signed; signing again is a no-op.
func (s *Service) SignDocument(ctx context.Context, documentID, signerID string) (*models.SigningStatus, error) {
	docID, ok := normalizeID(documentID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	signer, ok := normalizeID(signerID)
	if !ok {
		return nil, apperr.Validation("invalid signer id")
	}

	var (
		doc     models.Document
		signing models.SigningStatus
		err     error
	)
	// A concurrent first sign by the same signer loses on the unique index;
	// the second attempt then finds the winner's row.
	for attempt := 0; attempt < 2; attempt++ {
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ?", docID).First(&doc).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrDocumentNotFound
				}
				return err
			}

			signing = models.SigningStatus{}
			if err := tx.Where(models.SigningStatus{DocumentID: docID, UserID: signer}).
				Attrs(models.SigningStatus{Status: models.DocumentPending}).
				FirstOrCreate(&signing).Error; err != nil {
				return err
			}
			if signing.Status == models.DocumentSigned {
				return nil
			}
			if err := tx.Model(&signing).Update("status", models.DocumentSigned).Error; err != nil {
				return err
			}
			signing.Status = models.DocumentSigned
			return nil
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			logger.Errorf("Failed to sign document %s by %s: %v", docID, signer, err)
		}
		return nil, err
	}

	logger.Debugf("Document %s signed by %s", docID, signer)
	if s.observer != nil {
		s.observer.DocumentSigned(ctx, &doc, &signing)
	}
	return &signing, nil
}

func (s *Service) CreateDocument(ctx context.Context, doc *models.Document) error {
	if _, ok := normalizeID(doc.CreatorID); !ok {
		return apperr.Validation("invalid creator id")
	}
	if doc.Status != "" && !doc.Status.Valid() {
		return apperr.Validation("invalid document status")
	}
	if err := s.DB.WithContext(ctx).Create(doc).Error; err != nil {
		logger.Errorf("Failed to create document for %s: %v", doc.CreatorID, err)
		return err
	}
	return nil
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	id, ok := normalizeID(documentID)
	if !ok {
		return nil, ErrDocumentNotFound
	}
	var doc models.Document
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SigningStatuses lists the signing rows of a document, oldest first.
func (s *Service) SigningStatuses(ctx context.Context, documentID string) ([]models.SigningStatus, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	var rows []models.SigningStatus
	if err := s.DB.WithContext(ctx).
		Where("document_id = ?", doc.ID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SetDocumentStatus sets the document's own aggregate status.
func (s *Service) SetDocumentStatus(ctx context.Context, documentID string, status models.DocumentStatus) error {
	if !status.Valid() {
		return apperr.Validation("invalid document status")
	}
	id, ok := normalizeID(documentID)
	if !ok {
		return ErrDocumentNotFound
	}
	res := s.DB.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument removes a document together with its signing rows.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	id, ok := normalizeID(documentID)
	if !ok {
		return ErrDocumentNotFound
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.SigningStatus{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
}
