package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/notification-sync/internal/model"
)

func TestFormValuesMapOntoSettings(t *testing.T) {
	in := model.NotificationSettings{
		PushEnabled: true,
		Likes:       true,
		Wallet:      true,
	}

	v := fromSettings(in)
	assert.True(t, v.push)
	assert.False(t, v.inApp)
	assert.ElementsMatch(t, []string{"likes", "wallet"}, v.selected)

	v.selected = append(v.selected, "clubs")
	v.inApp = true

	out := toSettings(v)
	assert.True(t, out.PushEnabled)
	assert.True(t, out.InAppEnabled)
	assert.True(t, out.Likes)
	assert.True(t, out.Wallet)
	assert.True(t, out.Clubs)
	assert.False(t, out.Follows)
}
