package main

import "testing"

func TestResolveSettingsEnvOverridesFlags(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/from/env.yaml")
	t.Setenv("PROFILE", "env-profile")
	t.Setenv("HOST", "10.0.0.1")
	t.Setenv("PORT", "9999")

	cli := CLI{Config: "/from/flag.yaml", Profile: "flag-profile", Host: "0.0.0.0", Port: 3000}
	got := resolveSettings(cli)

	want := settings{configPath: "/from/env.yaml", host: "10.0.0.1", port: 9999, profile: "env-profile"}
	if got != want {
		t.Fatalf("resolveSettings() = %+v, want %+v", got, want)
	}
}

func TestResolveSettingsFallsBackToFlags(t *testing.T) {
	for _, v := range []string{"CONFIG_PATH", "PROFILE", "HOST", "PORT"} {
		t.Setenv(v, "")
	}

	cli := CLI{Config: "/from/flag.yaml", Profile: "flag-profile", Host: "0.0.0.0", Port: 3000}
	got := resolveSettings(cli)

	want := settings{configPath: "/from/flag.yaml", host: "0.0.0.0", port: 3000, profile: "flag-profile"}
	if got != want {
		t.Fatalf("resolveSettings() = %+v, want %+v", got, want)
	}
}

func TestResolveSettingsInvalidPortEnvIgnored(t *testing.T) {
	for _, v := range []string{"CONFIG_PATH", "PROFILE", "HOST"} {
		t.Setenv(v, "")
	}
	t.Setenv("PORT", "not-a-number")

	cli := CLI{Port: 4242}
	got := resolveSettings(cli)

	if got.port != 4242 {
		t.Fatalf("port = %d, want flag value 4242 preserved on invalid env", got.port)
	}
}

func TestResolveVersionFallsBackToDev(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = ""
	if got := resolveVersion(); got == "" {
		t.Fatal("resolveVersion() returned empty string")
	}

	Version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Fatalf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestPromptYesNoDefaultsToYesOnEmptyLine(t *testing.T) {
	// promptYesNo reads from os.Stdin directly; this just documents and
	// exercises the empty-string/"y"/"yes" acceptance rule via the
	// underlying parsing, without touching the real stdin descriptor.
	for _, in := range []string{"", "y", "Y", "yes", "YES"} {
		if !isAffirmative(in) {
			t.Errorf("isAffirmative(%q) = false, want true", in)
		}
	}
	for _, in := range []string{"n", "no", "nope"} {
		if isAffirmative(in) {
			t.Errorf("isAffirmative(%q) = true, want false", in)
		}
	}
}
