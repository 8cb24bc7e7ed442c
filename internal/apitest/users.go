package apitest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) filter(c *gin.Context) listFilter {
	f := listFilter{search: strings.ToLower(c.Query("search"))}
	for _, v := range c.QueryArray("status") {
		if n, err := strconv.Atoi(v); err == nil {
			if f.statuses == nil {
				f.statuses = make(map[int]bool)
			}
			f.statuses[n] = true
		}
	}
	return f
}

func page(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func accountsJSON(list []*Account) []accountJSON {
	out := make([]accountJSON, len(list))
	for i, a := range list {
		out[i] = a.json()
	}
	return out
}

func (s *Server) listUsers(c *gin.Context) {
	all := s.accounts.list(s.filter(c))
	p, size := page(c, "page", 1), page(c, "size", 10)

	start := min((p-1)*size, len(all))
	end := min(start+size, len(all))
	c.JSON(http.StatusOK, gin.H{
		"message": "ok",
		"data":    gin.H{"users": accountsJSON(all[start:end])},
		"meta":    gin.H{"page": p, "size": size, "total": len(all)},
	})
}

func (s *Server) exportUsers(c *gin.Context) {
	respond(c, http.StatusOK, "ok", gin.H{"users": accountsJSON(s.accounts.list(s.filter(c)))})
}

func (s *Server) getUser(c *gin.Context) {
	acc, ok := s.accounts.get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "user not found")
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"user": acc.json()})
}

func (s *Server) createUser(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"required"`
		Status   int    `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	if _, exists := s.accounts.byEmail(body.Email); exists {
		fail(c, http.StatusConflict, "email already registered")
		return
	}
	s.AddAccount(Account{Email: body.Email, Password: body.Password, FullName: body.FullName, Status: body.Status})
	respond(c, http.StatusCreated, "created", nil)
}

func (s *Server) updateUser(c *gin.Context) {
	var body struct {
		Email    *string `json:"email"`
		Password *string `json:"password"`
		FullName *string `json:"full_name"`
		Status   *int    `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.accounts.get(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "user not found")
		return
	}
	if body.Email != nil {
		acc.Email = *body.Email
	}
	if body.Password != nil {
		acc.Password = *body.Password
	}
	if body.FullName != nil {
		acc.FullName = *body.FullName
	}
	if body.Status != nil {
		acc.Status = *body.Status
	}
	acc.UpdatedAt = NowTimeFunc()
	s.accounts.upsert(acc)
	respond(c, http.StatusOK, "updated", nil)
}

func (s *Server) deleteUser(c *gin.Context) {
	if !s.accounts.delete(c.Param("id")) {
		fail(c, http.StatusNotFound, "user not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) importUsers(c *gin.Context) {
	var rows []struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Status   int    `json:"status"`
	}
	if err := c.ShouldBindJSON(&rows); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}

	created, updated := 0, 0
	for _, row := range rows {
		acc, ok := s.accounts.byEmail(row.Email)
		if !ok {
			acc = &Account{Email: row.Email, Status: 2, Permissions: map[string][]string{}}
		}
		if row.Password != "" {
			acc.Password = row.Password
		}
		if row.FullName != "" {
			acc.FullName = row.FullName
		}
		if row.Status != 0 {
			acc.Status = row.Status
		}
		if s.accounts.upsert(acc) {
			created++
		} else {
			updated++
		}
	}
	respond(c, http.StatusOK, "imported", gin.H{"created": created, "updated": updated})
}
