package env

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// FileVar names an explicit dotenv file that replaces the directory search.
const FileVar = "RENDEZA_ENV_FILE"

// Env holds the values read from the dotenv files. Keys missing here fall
// through to the process environment.
var Env map[string]string

// searchDirs are tried in order until one holds a .env. The binaries run from
// the repository root in Docker and from cmd/rendeza or cmd/migrate locally.
var searchDirs = []string{".", "../.."}

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile populates Env. A deployment without any dotenv file runs on
// the process environment alone.
func SetupEnvFile() {
	values, source, err := load(os.Getenv(FileVar), searchDirs)
	if err != nil {
		log.Warnf("[Env] %v, using process environment only", err)
		Env = map[string]string{}
		return
	}
	if source == "" {
		log.Warn("[Env] No .env file found, using process environment only")
	}
	Env = values
}

// load reads explicit when set. Otherwise it reads .env from the first
// directory in dirs that has one, overlaid with .env.local from the same
// directory. source reports the directory or file used.
func load(explicit string, dirs []string) (values map[string]string, source string, err error) {
	if explicit != "" {
		values, err = godotenv.Read(explicit)
		if err != nil {
			return nil, "", err
		}
		return values, explicit, nil
	}

	for _, dir := range dirs {
		values, err = godotenv.Read(filepath.Join(dir, ".env"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		local, err := godotenv.Read(filepath.Join(dir, ".env.local"))
		switch {
		case err == nil:
			for k, v := range local {
				values[k] = v
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", err
		}
		return values, dir, nil
	}
	return map[string]string{}, "", nil
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
