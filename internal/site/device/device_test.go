package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

const (
	chromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	chromeAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	firefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

type DeviceSuite struct {
	suite.Suite
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestIsMobile() {
	s.Run("phones are mobile", func() {
		s.True(IsMobile(safariIPhone))
		s.True(IsMobile(chromeAndroid))
	})

	s.Run("desktops are not mobile", func() {
		s.False(IsMobile(chromeMac))
		s.False(IsMobile(firefoxLinux))
	})

	s.Run("empty user agent is desktop", func() {
		s.False(IsMobile(""))
	})
}

func (s *DeviceSuite) TestDisplayName() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", DisplayName(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		result := DisplayName(chromeMac)
		s.Contains(result, "Chrome")
		s.Contains(result, " on ")
	})

	s.Run("firefox on linux includes browser", func() {
		s.Contains(DisplayName(firefoxLinux), "Firefox")
	})

	s.Run("result has no surrounding whitespace", func() {
		result := DisplayName("Unknown/1.0")
		s.NotEmpty(result)
		s.Equal(result, strings.TrimSpace(result))
	})
}
