package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[proxy]
mode = "completion"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("proxy.mode")).To(Equal("completion"))
		Expect(v.GetString("proxy.listen")).To(Equal(config.NewDefaultConfig().Proxy.Listen))
	})

	It("env vars take precedence over config file values", func() {
		data := `[proxy]
mode = "completion"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("SHAMBA_PROXY_MODE", "assistant")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("proxy.mode")).To(Equal("assistant"))
	})

	It("rejects an unparsable poll interval", func() {
		GinkgoT().Setenv("SHAMBA_ASSISTANT_POLL_INTERVAL", "often")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		_, err = config.FromViper(v)
		Expect(err).To(MatchError(ContainSubstring("assistant.poll_interval")))
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})
		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[assistant]
max_poll_attempts = 7
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var attempts int
		config.AddIntFlag(cmd, config.Flags, config.FlagMaxPollAttempts, &attempts)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagMaxPollAttempts})

		Expect(attempts).To(Equal(120))
		Expect(v.GetInt("assistant.max_poll_attempts")).To(Equal(7))
	})

	It("takes name, shorthand and default from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var mode string
		config.AddStringFlag(cmd, config.Flags, config.FlagMode, &mode)

		f := cmd.Flags().Lookup("mode")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("m"))
		Expect(f.DefValue).To(Equal("mock"))
	})

	It("skips unknown registry keys", func() {
		cmd := &cobra.Command{Use: "test"}
		var s string
		config.AddStringFlag(cmd, config.Flags, "nope", &s)
		Expect(cmd.Flags().HasFlags()).To(BeFalse())
	})
})
