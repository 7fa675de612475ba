package services

import (
	"garabingo/errs"
	"garabingo/models"

	"gorm.io/gorm"
)

type ServerService struct {
	db *gorm.DB
}

func NewServerService(db *gorm.DB) *ServerService {
	return &ServerService{db: db}
}

func (s *ServerService) CreateServer(name string) (*models.Server, error) {
	if name == "" {
		return nil, errs.Validationf("server name is required")
	}

	server := models.Server{Name: name}
	if err := s.db.Create(&server).Error; err != nil {
		return nil, errs.Internalf("failed to create server: %v", err)
	}
	return &server, nil
}

func (s *ServerService) GetServer(id uint) (*models.Server, error) {
	var server models.Server
	if err := s.db.First(&server, id).Error; err != nil {
		return nil, errs.NotFoundf("server %d not found", id)
	}
	return &server, nil
}
