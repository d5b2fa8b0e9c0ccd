package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/repository"
	"github.com/simtrek/esim_api/internal/utils"
)

// ClientService handles API client business logic.
type ClientService struct {
	clientRepo *repository.ClientRepository
}

// NewClientService constructs a ClientService.
func NewClientService(clientRepo *repository.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

// CreateClientRequest represents the request to create a new client.
type CreateClientRequest struct {
	ClientID    string   `json:"clientId" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	IPWhitelist []string `json:"ipWhitelist"`
	IsActive    *bool    `json:"isActive"`
}

// UpdateClientRequest represents the request to update a client.
type UpdateClientRequest struct {
	Name        string   `json:"name"`
	IPWhitelist []string `json:"ipWhitelist"`
	IsActive    *bool    `json:"isActive"`
}

// CreateClient creates a new client with auto-generated keys.
func (s *ClientService) CreateClient(ctx context.Context, req *CreateClientRequest) (*models.Client, error) {
	// Check if client_id already exists
	existing, _ := s.clientRepo.GetByClientID(req.ClientID)
	if existing != nil {
		return nil, errors.New("client_id already exists")
	}

	// Generate keys
	liveKey, err := utils.GenerateLiveKey()
	if err != nil {
		return nil, err
	}

	sandboxKey, err := utils.GenerateSandboxKey()
	if err != nil {
		return nil, err
	}

	// default active true if not provided
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	client := &models.Client{
		ClientID:    req.ClientID,
		Name:        req.Name,
		APIKey:      liveKey,
		SandboxKey:  sandboxKey,
		IPWhitelist: req.IPWhitelist,
		IsActive:    active,
	}

	if err := s.clientRepo.Create(client); err != nil {
		return nil, err
	}

	return client, nil
}

// GetClient retrieves a client by ID.
func (s *ClientService) GetClient(id int) (*models.Client, error) {
	return s.clientRepo.GetByID(id)
}

// GetClientByClientID retrieves a client by client_id.
func (s *ClientService) GetClientByClientID(clientID string) (*models.Client, error) {
	client, err := s.clientRepo.GetByClientID(clientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("client not found")
		}
		return nil, err
	}
	return client, nil
}

// ListClients retrieves all clients.
func (s *ClientService) ListClients() ([]*models.Client, error) {
	return s.clientRepo.List()
}

// UpdateClient updates a client.
func (s *ClientService) UpdateClient(id int, req *UpdateClientRequest) (*models.Client, error) {
	client, err := s.clientRepo.GetByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("client not found")
		}
		return nil, err
	}

	// Update fields if provided
	if req.Name != "" {
		client.Name = req.Name
	}
	if req.IPWhitelist != nil {
		client.IPWhitelist = req.IPWhitelist
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}

	if err := s.clientRepo.Update(client); err != nil {
		return nil, err
	}

	return client, nil
}

// RegenerateKeys regenerates API keys for a client.
func (s *ClientService) RegenerateKeys(id int, keyType string) (*models.Client, error) {
	client, err := s.clientRepo.GetByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("client not found")
		}
		return nil, err
	}

	switch keyType {
	case "live":
		newKey, err := utils.GenerateLiveKey()
		if err != nil {
			return nil, err
		}
		client.APIKey = newKey
	case "sandbox":
		newKey, err := utils.GenerateSandboxKey()
		if err != nil {
			return nil, err
		}
		client.SandboxKey = newKey
	default:
		return nil, errors.New("invalid key_type: must be 'live' or 'sandbox'")
	}

	if err := s.clientRepo.Update(client); err != nil {
		return nil, err
	}

	return client, nil
}
