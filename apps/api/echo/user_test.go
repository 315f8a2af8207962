package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "User", "awesome", "awe@test.cd", "LordOfTheRings", user.RoleStudent, true)
	naughty := testutil.CreateUser(t, app.usrRepo, "N Dog", "naughty", "ndog@test.cd", "LordOfTheRings", user.RoleStudent, false)

	tests := []httpTest{
		{
			name: "empty payload", body: marchallObj(t, LoginRequest{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, LoginRequest{Username: "lol", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, LoginRequest{Username: usr.Username, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, LoginRequest{Username: naughty.Username, Password: "LordOfTheRings"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", body: marchallObj(t, LoginRequest{Username: usr.Username, Password: "LordOfTheRings"})},
		{name: "login with email", body: marchallObj(t, LoginRequest{Username: usr.Email, Password: "LordOfTheRings"})},
		{name: "username is case-insensitive", body: marchallObj(t, LoginRequest{Username: "AwEsOmE", Password: "LordOfTheRings"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling LoginResponse failed: %v", err)
				}

				claims := new(Claims)
				token, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
					return app.conf.SecretKey, nil
				})
				if err != nil || !token.Valid {
					t.Fatalf("invalid token returned: %v", err)
				}
				if claims.Subject != usr.ID {
					t.Errorf("claims.Subject = %s, want %s", claims.Subject, usr.ID)
				}
				if !claims.IsStudent {
					t.Error("claims.IsStudent = false, want true")
				}
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "User", "awesome", "awe@test.cd", "LordOfTheRings", user.RoleTeacher, true)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "refresh", token: getToken(t, app.conf, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling LoginResponse failed: %v", err)
				}
				if resp.Token == "" {
					t.Error("empty refreshed token")
				}
			}
		})
	}
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "pwd", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Teacher", "teacher1", "teacher@test.cd", "pwd", user.RoleTeacher, true)

	newUser := func(uname, email, role string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New User",
			Username:        uname,
			Email:           email,
			Role:            role,
			Password:        "anotherBrickInTheWall",
			PasswordConfirm: "anotherBrickInTheWall",
		})
	}

	tests := []httpTest{
		{name: "auth required", body: newUser("newstd1", "n1@test.cd", "Student"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", token: getToken(t, app.conf, teacher), body: newUser("newstd1", "n1@test.cd", "Student"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown role", token: getToken(t, app.conf, admin), body: newUser("newstd1", "n1@test.cd", "Wizard"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "unknown role"}),
		},
		{name: "create student", token: getToken(t, app.conf, admin), body: newUser("newstd1", "n1@test.cd", "Student"), wantCode: http.StatusCreated},
		{
			name: "duplicate username", token: getToken(t, app.conf, admin), body: newUser("newstd1", "other@test.cd", "Student"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusCreated {
				var created user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
					t.Fatalf("unmarshalling User failed: %v", err)
				}
				if created.Role != user.RoleStudent {
					t.Errorf("created.Role = %s, want %s", created.Role, user.RoleStudent)
				}
			}
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", user.RoleAdmin, true)
	usr := testutil.CreateUser(t, app.usrRepo, "User", "awesome", "awe@test.cd", "", user.RoleStudent, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other1", "other@test.cd", "", user.RoleStudent, true)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/" + usr.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "self", path: "/v1/users/" + usr.ID, token: getToken(t, app.conf, usr), wantData: marchallObj(t, usr)},
		{
			name: "other user is hidden", path: "/v1/users/" + other.ID, token: getToken(t, app.conf, usr),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin sees anyone", path: "/v1/users/" + other.ID, token: getToken(t, app.conf, admin), wantData: marchallObj(t, other)},
		{
			name: "unknown ID", path: "/v1/users/deadbeef", token: getToken(t, app.conf, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
