package db

import "time"

// User は認証済みユーザーのDB行。
// OIDはトークンのoidクレームに対応し、ユーザーを一意に識別する。
type User struct {
	// ID は内部的な主キー。
	ID int64
	// OID はMicrosoft Entra IDのオブジェクトID。
	OID string
	// DisplayName はトークンから取得した表示名。空の場合もある。
	DisplayName string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// BlogPost はブログ記事のDB行。
type BlogPost struct {
	// ID は記事の主キー。
	ID int64
	// Title は記事タイトル。
	Title string
	// Content は記事本文。
	Content string
	// AuthorID は著者ユーザーのID（usersテーブルへの外部キー）。
	AuthorID int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}
