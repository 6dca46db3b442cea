package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClientReturnsClient(t *testing.T) {
	c := NewClient("test-token")
	assert.NotNil(t, c)
	var _ Client = c //nolint:staticcheck // interface compliance check
}

func TestCreatePageError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(nil, assert.AnError)

	page, err := mc.CreatePage(ctx, &notionapi.PageCreateRequest{})
	assert.Error(t, err)
	assert.Nil(t, page)
	mc.AssertExpectations(t)
}
