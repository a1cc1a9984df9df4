package domain

import "testing"

func TestUser_PublicDropsPasswordHash(t *testing.T) {
	u := &User{ID: "u1", Username: "ana", Email: "ana@example.com", Password: "$2a$12$hash"}

	pub := u.Public()
	if pub.Password != "" {
		t.Errorf("Public().Password = %q, want empty", pub.Password)
	}
	if pub.Username != "ana" {
		t.Errorf("Public().Username = %q, want ana", pub.Username)
	}
	if u.Password != "$2a$12$hash" {
		t.Error("Public() modified the stored user")
	}
}

func TestDevice_Response(t *testing.T) {
	d := &Device{ID: "d1", UserID: "u1", Name: "laptop", Type: "cli", OS: "linux", AppVersion: "0.1.0", IsRevoked: true}

	r := d.Response()
	if r.ID != "d1" || r.AppVersion != "0.1.0" || !r.IsRevoked {
		t.Errorf("Response() = %+v", r)
	}
}
