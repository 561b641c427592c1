package thankyou_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/require"

	thankyou "github.com/st-keller/thankyou-client"
	"github.com/st-keller/thankyou-client/component"
	"github.com/st-keller/thankyou-client/debounce"
	"github.com/st-keller/thankyou-client/registry"
	"github.com/st-keller/thankyou-client/rotation"
	"github.com/st-keller/thankyou-client/types"
)

func TestButtonAttachment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.client.NewThankYouButton(thankyou.ButtonConfig{})
	var cerr *thankyou.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "Selector", cerr.Field)

	_, err = f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#nowhere"})
	require.ErrorAs(t, err, &cerr)
	require.True(t, errors.Is(err, registry.ErrNotFound))

	_, err = f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks", ProjectName: "Not A Slug"})
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "ProjectName", cerr.Field)

	_, err = f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks", InactivityDelay: -time.Second})
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "InactivityDelay", cerr.Field)
}

func TestButtonDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	b, err := f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks"})
	require.NoError(t, err)

	require.Equal(t, "thank-you-1", b.ID())
	require.Equal(t, "👍", b.Emoji())
	require.Equal(t, "Dire merci", b.Label())
	require.Equal(t, debounce.Idle, b.State())

	view, ok := f.rec.View(b.ID())
	require.True(t, ok)
	require.True(t, view.Mounted)
	require.Equal(t, "Dire merci", view.Label)
	require.True(t, strings.Contains(view.Stylesheet, ".thank-you-button"))
}

func TestButtonBurstReportsOnce(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(t)
	b, err := f.client.NewThankYouButton(thankyou.ButtonConfig{
		Selector:    "#thanks",
		ProjectName: "my-project",
		DevID:       3,
	})
	require.NoError(t, err)

	require.NoError(t, b.Click()) // t=0
	f.clock.Advance(300 * time.Millisecond).MustWait(ctx)
	require.NoError(t, b.Click()) // t=300
	f.clock.Advance(300 * time.Millisecond).MustWait(ctx)
	require.NoError(t, b.Click()) // t=600
	require.Equal(t, 3, b.Pending())
	require.Equal(t, debounce.Pending, b.State())

	f.clock.Advance(999 * time.Millisecond).MustWait(ctx)
	b.Wait()
	require.Empty(t, f.sink.got())

	f.clock.Advance(time.Millisecond).MustWait(ctx)
	b.Wait()
	require.Equal(t, []types.Payload{types.ClickPayload{
		UserID:      "user-test",
		ProjectName: "my-project",
		DevID:       3,
		Clicks:      3,
	}}, f.sink.got())
	require.Zero(t, b.Pending())
	require.Equal(t, debounce.Idle, b.State())
}

func TestButtonFeedbackPerClick(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	messages := []string{"Merci !", "Super !", "Top !"}
	b, err := f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks", Messages: messages})
	require.NoError(t, err)

	require.NoError(t, b.Click())
	require.Equal(t, "Merci !", b.Label(), "first click always shows the first message")

	for range 9 {
		require.NoError(t, b.Click())
		require.Contains(t, messages, b.Label())
	}

	view, _ := f.rec.View(b.ID())
	require.Equal(t, 10, view.Floats)

	for _, e := range f.rec.Events(b.ID()) {
		if e.Kind == component.KindFloat {
			require.GreaterOrEqual(t, e.Offset, -10.0)
			require.Less(t, e.Offset, 10.0)
		}
	}
}

func TestButtonsShareIdentity(t *testing.T) {
	t.Parallel()

	s := &fakeSink{}
	client, err := thankyou.New(thankyou.Config{
		Registry: registry.New("#a", "#b"),
		Logger:   slogtest.Make(t, nil),
		Sink:     s,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	a, err := client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#a"})
	require.NoError(t, err)
	b, err := client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#b", ProjectName: "other-project"})
	require.NoError(t, err)

	require.NoError(t, a.Click())
	require.NoError(t, b.Click())
	a.Flush()
	b.Flush()
	a.Wait()
	b.Wait()

	got := s.got()
	require.Len(t, got, 2)
	first := got[0].(types.ClickPayload)
	second := got[1].(types.ClickPayload)
	require.True(t, strings.HasPrefix(first.UserID, "user-"))
	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, client.Identity().UserID(), first.UserID)
}

func TestButtonDetachFlushes(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	f := newFixture(t)
	b, err := f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks"})
	require.NoError(t, err)

	require.NoError(t, b.Click())
	require.NoError(t, b.Click())
	b.Detach()
	b.Wait()

	got := f.sink.got()
	require.Len(t, got, 1)
	require.Equal(t, 2, got[0].(types.ClickPayload).Clicks)

	require.ErrorIs(t, b.Click(), thankyou.ErrDetached)
	f.clock.Advance(debounce.DefaultDelay).MustWait(ctx)
	b.Wait()
	require.Len(t, f.sink.got(), 1)

	view, _ := f.rec.View(b.ID())
	require.False(t, view.Mounted)

	// The mount point is free again.
	b2, err := f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks"})
	require.NoError(t, err)
	require.NotEqual(t, b.ID(), b2.ID())
}

func TestButtonDefaultRotationPool(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	b, err := f.client.NewThankYouButton(thankyou.ButtonConfig{Selector: "#thanks"})
	require.NoError(t, err)

	require.NoError(t, b.Click())
	require.Equal(t, rotation.DefaultMessages[0], b.Label())
}
