package server

import (
	"alertbot/internal/logger"
	"alertbot/internal/stream"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxTickerUpload = 2 << 20

func (s *Server) tickerTable(c *gin.Context) {
	all := s.deps.Tickers.All()
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"ticker_count": len(all),
		"tickers":      all,
	})
}

func (s *Server) uploadTickers(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "Не передан файл таблицы тикеров")
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		fail(c, http.StatusBadRequest, "Ожидается CSV файл")
		return
	}
	if fh.Size > maxTickerUpload {
		fail(c, http.StatusRequestEntityTooLarge, "Файл слишком большой")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Не удалось открыть файл")
		return
	}
	defer f.Close()

	n, err := s.deps.Tickers.Replace(f)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if s.deps.Feed != nil {
		s.deps.Feed.Publish(stream.EventTypeTickers, gin.H{"ticker_count": n})
	}
	s.logEntry().WithField("tickers", n).Info("Таблица тикеров заменена через загрузку.")
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      "Таблица тикеров обновлена",
		"ticker_count": n,
	})
}

func (s *Server) refreshDividends(c *gin.Context) {
	if s.deps.Dividends == nil {
		fail(c, http.StatusNotFound, "Обновление дивидендов отключено")
		return
	}
	entries, err := s.deps.Dividends.Run(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if s.deps.Feed != nil {
		s.deps.Feed.Publish(stream.EventTypeDividends, entries)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "results": entries})
}

func (s *Server) logFiles(c *gin.Context) {
	files, err := logger.Files(s.log.Dir())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Не удалось прочитать каталог логов")
		return
	}
	if files == nil {
		files = []logger.File{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "files": files})
}

func (s *Server) logFile(c *gin.Context) {
	name := c.Param("name")
	data, err := logger.ReadFile(s.log.Dir(), name)
	if err != nil {
		fail(c, http.StatusNotFound, "Файл лога не найден")
		return
	}
	if strings.HasSuffix(name, ".gz") {
		c.Header("Content-Disposition", "attachment; filename="+name)
		c.Data(http.StatusOK, "application/gzip", data)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}
