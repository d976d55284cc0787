package publisher_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmaier/listify/internal/ebay"
	"github.com/dmaier/listify/internal/etsy"
	"github.com/dmaier/listify/internal/notify"
	"github.com/dmaier/listify/internal/publisher"
	"github.com/dmaier/listify/internal/store"
	"github.com/dmaier/listify/internal/store/mocks"
	"github.com/dmaier/listify/pkg/logger"
	domain "github.com/dmaier/listify/pkg/types"
)

type fakeSessions struct {
	session *domain.OAuthSession
	err     error
}

func (f *fakeSessions) EnsureValid(
	_ context.Context,
	_ domain.Provider,
) (*domain.OAuthSession, error) {
	return f.session, f.err
}

type fakeEbay struct {
	listingID string
	err       error
	drafts    []ebay.ListingDraft
}

func (f *fakeEbay) PublishListing(
	_ context.Context,
	draft ebay.ListingDraft,
) (string, error) {
	f.drafts = append(f.drafts, draft)
	return f.listingID, f.err
}

type fakeEtsy struct {
	listingID string
	createErr error
	uploadErr error

	createdShopID string
	uploads       int
}

func (f *fakeEtsy) CreateListing(
	_ context.Context,
	shopID string,
	_ etsy.ListingDraft,
) (string, error) {
	f.createdShopID = shopID
	return f.listingID, f.createErr
}

func (f *fakeEtsy) UploadListingImage(
	_ context.Context, _, _, _ string, _ io.Reader,
) error {
	f.uploads++
	return f.uploadErr
}

type fakeBlobs struct{}

func (fakeBlobs) Save(_ string, _ io.Reader) (string, error) { return "", nil }

func (fakeBlobs) Open(_ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("image-bytes")), nil
}

func (fakeBlobs) URL(name string) string { return "/static/uploads/" + name }

type recordingNotifier struct {
	events []notify.PublishEvent
	err    error
}

func (r *recordingNotifier) PublishResult(
	_ context.Context,
	event notify.PublishEvent,
) error {
	r.events = append(r.events, event)
	return r.err
}

func testProduct() *domain.Product {
	return &domain.Product{
		ID:            7,
		Title:         "Ceramic mug",
		Description:   "Hand glazed, 350ml",
		Price:         20,
		Cost:          12,
		ImageFilename: "mug.jpg",
		Version:       3,
	}
}

func authedSessions(provider domain.Provider) *fakeSessions {
	s := &fakeSessions{
		session: &domain.OAuthSession{
			Provider:    provider,
			AccessToken: "at",
		},
	}
	if provider == domain.ProviderEtsy {
		s.session.ShopID = "4242"
	}
	return s
}

func newPublisher(
	s store.Store,
	sessions publisher.Sessions,
	ebayLister publisher.EbayLister,
	etsyLister publisher.EtsyLister,
	notifier notify.Notifier,
) *publisher.Publisher {
	return publisher.New(
		s, sessions, ebayLister, etsyLister,
		fakeBlobs{}, notifier, logger.Discard(),
		"http://localhost:8080",
	)
}

func TestPublisher_PublishEbay(t *testing.T) {
	t.Parallel()

	product := testProduct()
	published := testProduct()
	published.Ebay = domain.PublishState{Published: true, ListingID: "listing-555"}
	published.Version = 4

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()
	s.EXPECT().
		SetPublishState(mock.Anything, int64(7), domain.ProviderEbay, "listing-555", 3).
		Return(nil).
		Once()
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(published, nil).Once()

	ebayLister := &fakeEbay{listingID: "listing-555"}
	notifier := &recordingNotifier{}

	p := newPublisher(s, authedSessions(domain.ProviderEbay), ebayLister, &fakeEtsy{}, notifier)

	got, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	require.NoError(t, err)
	assert.True(t, got.Ebay.Published)
	assert.Equal(t, "listing-555", got.Ebay.ListingID)

	// The draft carries the public image URL for eBay to fetch.
	require.Len(t, ebayLister.drafts, 1)
	assert.Equal(t,
		[]string{"http://localhost:8080/static/uploads/mug.jpg"},
		ebayLister.drafts[0].ImageURLs)
	assert.Equal(t, 10, ebayLister.drafts[0].Quantity)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "listing-555", notifier.events[0].ListingID)
	assert.NoError(t, notifier.events[0].Err)
}

func TestPublisher_PublishEtsy(t *testing.T) {
	t.Parallel()

	product := testProduct()
	published := testProduct()
	published.Etsy = domain.PublishState{Published: true, ListingID: "987654"}

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()
	s.EXPECT().
		SetPublishState(mock.Anything, int64(7), domain.ProviderEtsy, "987654", 3).
		Return(nil).
		Once()
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(published, nil).Once()

	etsyLister := &fakeEtsy{listingID: "987654"}

	p := newPublisher(s, authedSessions(domain.ProviderEtsy), &fakeEbay{}, etsyLister, &recordingNotifier{})

	got, err := p.Publish(context.Background(), 7, domain.ProviderEtsy)
	require.NoError(t, err)
	assert.True(t, got.Etsy.Published)
	assert.Equal(t, "4242", etsyLister.createdShopID)
	assert.Equal(t, 1, etsyLister.uploads)
}

func TestPublisher_EtsyImageUploadFailureStillPublishes(t *testing.T) {
	t.Parallel()

	product := testProduct()
	published := testProduct()
	published.Etsy = domain.PublishState{Published: true, ListingID: "987654"}

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()
	s.EXPECT().
		SetPublishState(mock.Anything, int64(7), domain.ProviderEtsy, "987654", 3).
		Return(nil).
		Once()
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(published, nil).Once()

	etsyLister := &fakeEtsy{
		listingID: "987654",
		uploadErr: errors.New("image too large"),
	}

	p := newPublisher(s, authedSessions(domain.ProviderEtsy), &fakeEbay{}, etsyLister, &recordingNotifier{})

	got, err := p.Publish(context.Background(), 7, domain.ProviderEtsy)
	require.NoError(t, err)
	assert.True(t, got.Etsy.Published)
}

func TestPublisher_NotAuthenticated(t *testing.T) {
	t.Parallel()

	s := mocks.NewMockStore(t)

	sessions := &fakeSessions{err: domain.ErrNotAuthenticated}

	p := newPublisher(s, sessions, &fakeEbay{}, &fakeEtsy{}, &recordingNotifier{})

	_, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestPublisher_ProductNotFound(t *testing.T) {
	t.Parallel()

	s := mocks.NewMockStore(t)
	s.EXPECT().
		GetProduct(mock.Anything, int64(404)).
		Return(nil, domain.ErrItemNotFound).
		Once()

	p := newPublisher(s, authedSessions(domain.ProviderEbay), &fakeEbay{}, &fakeEtsy{}, &recordingNotifier{})

	_, err := p.Publish(context.Background(), 404, domain.ProviderEbay)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestPublisher_AlreadyPublishedIsNoOp(t *testing.T) {
	t.Parallel()

	product := testProduct()
	product.Ebay = domain.PublishState{Published: true, ListingID: "listing-1"}

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()

	ebayLister := &fakeEbay{listingID: "should-not-be-used"}

	p := newPublisher(s, authedSessions(domain.ProviderEbay), ebayLister, &fakeEtsy{}, &recordingNotifier{})

	got, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	require.NoError(t, err)
	assert.Equal(t, "listing-1", got.Ebay.ListingID)
	assert.Empty(t, ebayLister.drafts, "no provider call for an already-published product")
}

func TestPublisher_ProviderFailureIsNotMasked(t *testing.T) {
	t.Parallel()

	product := testProduct()

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()

	upstream := &domain.UpstreamError{
		Provider:   domain.ProviderEbay,
		Step:       ebay.StepOffer,
		StatusCode: 400,
		Detail:     "invalid policy",
	}
	ebayLister := &fakeEbay{err: upstream}
	notifier := &recordingNotifier{}

	p := newPublisher(s, authedSessions(domain.ProviderEbay), ebayLister, &fakeEtsy{}, notifier)

	_, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	require.Error(t, err)

	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, ebay.StepOffer, upstreamErr.Step)

	// The failure is also reported through the notifier.
	require.Len(t, notifier.events, 1)
	assert.Error(t, notifier.events[0].Err)
}

func TestPublisher_EtsyWithoutShop(t *testing.T) {
	t.Parallel()

	product := testProduct()

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()

	sessions := &fakeSessions{
		session: &domain.OAuthSession{
			Provider:    domain.ProviderEtsy,
			AccessToken: "at",
		},
	}
	etsyLister := &fakeEtsy{listingID: "unused"}

	p := newPublisher(s, sessions, &fakeEbay{}, etsyLister, &recordingNotifier{})

	_, err := p.Publish(context.Background(), 7, domain.ProviderEtsy)
	require.Error(t, err)

	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "shop_lookup", upstreamErr.Step)
	assert.Empty(t, etsyLister.createdShopID)
}

func TestPublisher_VersionConflict(t *testing.T) {
	t.Parallel()

	product := testProduct()

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()
	s.EXPECT().
		SetPublishState(mock.Anything, int64(7), domain.ProviderEbay, "listing-555", 3).
		Return(store.ErrVersionConflict).
		Once()

	ebayLister := &fakeEbay{listingID: "listing-555"}

	p := newPublisher(s, authedSessions(domain.ProviderEbay), ebayLister, &fakeEtsy{}, &recordingNotifier{})

	_, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	// The listing id is preserved in the error for manual reconciliation.
	assert.Contains(t, err.Error(), "listing-555")
}

func TestPublisher_NotifierFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	product := testProduct()
	published := testProduct()
	published.Ebay = domain.PublishState{Published: true, ListingID: "listing-555"}

	s := mocks.NewMockStore(t)
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(product, nil).Once()
	s.EXPECT().
		SetPublishState(mock.Anything, int64(7), domain.ProviderEbay, "listing-555", 3).
		Return(nil).
		Once()
	s.EXPECT().GetProduct(mock.Anything, int64(7)).Return(published, nil).Once()

	notifier := &recordingNotifier{err: errors.New("webhook down")}

	p := newPublisher(s, authedSessions(domain.ProviderEbay), &fakeEbay{listingID: "listing-555"}, &fakeEtsy{}, notifier)

	got, err := p.Publish(context.Background(), 7, domain.ProviderEbay)
	require.NoError(t, err)
	assert.True(t, got.Ebay.Published)
}
