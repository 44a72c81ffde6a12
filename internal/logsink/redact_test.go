package logsink

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "nothing secret here", want: "nothing secret here"},
		{name: "keyValue", in: "login password=hunter2 ok", want: "login password=*** ok"},
		{name: "caseInsensitive", in: "TOKEN=abc def", want: "TOKEN=*** def"},
		{name: "queryString", in: "GET /v1?api_key=abc&page=2", want: "GET /v1?api_key=***&page=2"},
		{name: "accessToken", in: "access_token=ya29.a0 expires=3600", want: "access_token=*** expires=3600"},
		{name: "authorizationBearer", in: "Authorization: Bearer abc.def.ghi", want: "Authorization: Bearer ***"},
		{name: "authorizationRaw", in: "Authorization: xyz123 next", want: "Authorization: *** next"},
		{name: "bareBearer", in: "sent Bearer abc end", want: "sent Bearer *** end"},
		{name: "jsonField", in: `{"password":"p@ss","user":"bob"}`, want: `{"password":"***","user":"bob"}`},
		{name: "jsonSpacing", in: `{"access_token" : "a\"b", "n": 1}`, want: `{"access_token" : "***", "n": 1}`},
		{name: "jsonKeyPreservesCase", in: `{"Secret":"x"}`, want: `{"Secret":"***"}`},
		{name: "doubleQuoted", in: `login password="hunter2" ok`, want: "login password=*** ok"},
		{name: "doubleQuotedSpaces", in: `token="abc def" next`, want: "token=*** next"},
		{name: "doubleQuotedEscapes", in: `secret="a\"b c" tail`, want: "secret=*** tail"},
		{name: "singleQuoted", in: "api_key='abc def' tail", want: "api_key=*** tail"},
		{name: "jsonNonSensitive", in: `{"user":"bob"}`, want: `{"user":"bob"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizePreservesSurroundingText(t *testing.T) {
	const prefix = "before: "
	const suffix = " :after"
	for _, key := range sensitiveKeys {
		kv := prefix + key + "=s3cr3tValue" + suffix
		if got, want := Sanitize(kv), prefix+key+"="+Mask+suffix; got != want {
			t.Fatalf("key=value for %q: got %q want %q", key, got, want)
		}

		js := prefix + `{"` + key + `":"s3cr3tValue"}` + suffix
		if got, want := Sanitize(js), prefix+`{"`+key+`":"`+Mask+`"}`+suffix; got != want {
			t.Fatalf("json for %q: got %q want %q", key, got, want)
		}
	}

	auth := prefix + "Authorization: s3cr3tValue" + suffix
	if got, want := Sanitize(auth), prefix+"Authorization: "+Mask+suffix; got != want {
		t.Fatalf("authorization: got %q want %q", got, want)
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := `token=abc Authorization: Bearer xyz {"secret":"s"}`
	once := Sanitize(in)
	if twice := Sanitize(once); twice != once {
		t.Fatalf("expected idempotent output, got %q then %q", once, twice)
	}
}
