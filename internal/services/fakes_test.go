package services

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"domainpanel/internal/apperr"
	"domainpanel/internal/crypto"
	"domainpanel/internal/models"
)

// testKey is 32 bytes of zeros, hex-encoded.
const testKey = "0000000000000000000000000000000000000000000000000000000000000000"

func newTestEncryptor() *crypto.Encryptor {
	enc, err := crypto.NewEncryptor(testKey)
	if err != nil {
		panic(err)
	}
	return enc
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	servers     []models.Server
	templates   []models.Template
	deployments []models.Deployment
}

func (f *fakeStore) ServerByID(id string) (*models.Server, error) {
	for i := range f.servers {
		if f.servers[i].ID.String() == id {
			return &f.servers[i], nil
		}
	}
	return nil, apperr.NotFound("server not found")
}

func (f *fakeStore) ServerByExact(value string) (*models.Server, error) {
	for i := range f.servers {
		s := &f.servers[i]
		if s.Host == value || s.Name == value || s.Hostname == value {
			return s, nil
		}
	}
	return nil, apperr.NotFound("server not found")
}

func (f *fakeStore) ServerByName(name string) (*models.Server, error) {
	for i := range f.servers {
		if f.servers[i].Name == name {
			return &f.servers[i], nil
		}
	}
	return nil, apperr.NotFound("server not found")
}

func (f *fakeStore) Servers() ([]models.Server, error) {
	return f.servers, nil
}

func (f *fakeStore) SaveServerHostname(id uuid.UUID, hostname string) error {
	for i := range f.servers {
		if f.servers[i].ID == id {
			f.servers[i].Hostname = hostname
			return nil
		}
	}
	return apperr.NotFound("server not found")
}

func (f *fakeStore) TemplateByID(id string) (*models.Template, error) {
	for i := range f.templates {
		if f.templates[i].ID.String() == id {
			return &f.templates[i], nil
		}
	}
	return nil, apperr.NotFound("template not found")
}

func (f *fakeStore) DeploymentByDomain(name string) (*models.Deployment, error) {
	for i := range f.deployments {
		if f.deployments[i].DomainName == name {
			return &f.deployments[i], nil
		}
	}
	return nil, apperr.NotFound("deployment not found")
}

func (f *fakeStore) DeploymentByBCID(bcid string) (*models.Deployment, error) {
	for i := range f.deployments {
		if f.deployments[i].BCID == bcid {
			return &f.deployments[i], nil
		}
	}
	return nil, apperr.NotFound("deployment record not found")
}

func (f *fakeStore) DeploymentByID(id string) (*models.Deployment, error) {
	for i := range f.deployments {
		if f.deployments[i].ID.String() == id {
			return &f.deployments[i], nil
		}
	}
	return nil, apperr.NotFound("deployment record not found")
}

func (f *fakeStore) SaveDeployment(d *models.Deployment) error {
	for i := range f.deployments {
		if f.deployments[i].ID == d.ID || f.deployments[i].DomainName == d.DomainName {
			f.deployments[i] = *d
			return nil
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.deployments = append(f.deployments, *d)
	return nil
}

func (f *fakeStore) DeleteDeployment(id uuid.UUID) error {
	for i := range f.deployments {
		if f.deployments[i].ID == id {
			f.deployments = append(f.deployments[:i], f.deployments[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeSession services Run calls through a handler and records uploads with
// their content.
type fakeSession struct {
	handle   func(command string) (*CommandResult, error)
	uploads  map[string]string // remote path -> content
	commands []string
	closed   bool
}

func newFakeSession(handle func(command string) (*CommandResult, error)) *fakeSession {
	return &fakeSession{handle: handle, uploads: map[string]string{}}
}

func (f *fakeSession) Run(command string, timeout time.Duration) (*CommandResult, error) {
	f.commands = append(f.commands, command)
	if f.handle != nil {
		if res, err := f.handle(command); res != nil || err != nil {
			return res, err
		}
	}
	return &CommandResult{}, nil
}

func (f *fakeSession) Upload(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return apperr.Transfer("cannot open local file", err)
	}
	f.uploads[remotePath] = string(data)
	return nil
}

func (f *fakeSession) Download(remotePath, localPath string) error {
	content, ok := f.uploads[remotePath]
	if !ok {
		return apperr.Transfer("no such remote file", nil)
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) ran(substr string) bool {
	for _, c := range f.commands {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func fakeDialer(session *fakeSession) Dialer {
	return func(t Target) (RemoteSession, error) {
		return session, nil
	}
}

func testServer(enc *crypto.Encryptor, host, name, hostname string) models.Server {
	pw, err := enc.Encrypt("sekret")
	if err != nil {
		panic(err)
	}
	return models.Server{
		ID:                uuid.New(),
		Name:              name,
		Host:              host,
		Hostname:          hostname,
		Port:              22,
		Username:          "deploy",
		AuthType:          "password",
		EncryptedPassword: pw,
		Webroot:           "/var/www/html",
	}
}

func testTemplate() models.Template {
	return models.Template{
		ID:       uuid.New(),
		Name:     "Landing",
		Filename: "landing.html",
		Content:  "<html><body>hello</body></html>",
	}
}
