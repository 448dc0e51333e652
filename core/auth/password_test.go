package auth

import "testing"

func TestPasswordHashVerify(t *testing.T) {
	pepper := "pepper"
	pass := "S3cure#Pass"
	ph, err := HashPassword(pass, pepper)
	if err != nil {
		t.Fatalf("hash err: %v", err)
	}
	ok, err := VerifyPassword(pass, pepper, ph)
	if err != nil || !ok {
		t.Fatalf("verify failed")
	}
	ok, _ = VerifyPassword("wrong", pepper, ph)
	if ok {
		t.Fatalf("expected failure for wrong password")
	}
	ok, _ = VerifyPassword(pass, "other-pepper", ph)
	if ok {
		t.Fatalf("expected failure for wrong pepper")
	}
}

func TestPasswordHashUniqueSalts(t *testing.T) {
	a := MustHashPassword("S3cure#Pass", "pepper")
	b := MustHashPassword("S3cure#Pass", "pepper")
	if a.Salt == b.Salt || a.Hash == b.Hash {
		t.Fatalf("expected distinct salt and hash per call")
	}
}

func TestParsePasswordHash(t *testing.T) {
	ph := MustHashPassword("S3cure#Pass", "pepper")
	parsed, err := ParsePasswordHash(ph.Hash, ph.Salt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ok, err := VerifyPassword("S3cure#Pass", "pepper", parsed)
	if err != nil || !ok {
		t.Fatalf("verify after parse failed")
	}
	if _, err := ParsePasswordHash("not-base64!!", ph.Salt); err == nil {
		t.Fatalf("expected error for bad hash encoding")
	}
}
